// Package gemini analyzes documents with the Gemini API. Unlike chat
// completions it takes PDFs and HEIC images inline.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
	"google.golang.org/genai"
)

type Config struct {
	APIKey          string // if empty, falls back to env GEMINI_API_KEY
	Model           string // default gemini-2.0-flash
	Temperature     float32
	LenientOptional bool
}

// generator is the slice of *genai.Models we use.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	cfg    Config
	models generator
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newClient(cfg, gc.Models, logger), nil
}

func newClient(cfg Config, models generator, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, models: models, logger: logger}
}

func (c *Client) Name() string { return "gemini" }

// Analyze implements llm.DocumentAnalyzer.
func (c *Client) Analyze(ctx context.Context, req llm.AnalyzeRequest) (llm.Analysis, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.analyze.start",
		"req_id", rid,
		"backend", c.Name(),
		"model", c.cfg.Model,
		"mime", req.MIMEType,
		"bytes", len(req.Data),
	)

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText(llm.BuildUserPrompt(req, false)),
			genai.NewPartFromBytes(req.Data, constants.NormalizeMIME(req.MIMEType)),
		},
	}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(llm.BuildSystemPrompt() +
				"\n\nJSON Schema:\n" + llm.SchemaText())},
		},
		Temperature:      genai.Ptr(c.cfg.Temperature),
		ResponseMIMEType: "application/json",
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, config)
	if err != nil {
		c.logger.Error("llm.analyze.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Analysis{}, nil, fmt.Errorf("gemini: %w", classify(err))
	}

	text := responseText(resp)
	if text == "" {
		c.logger.Error("llm.analyze.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Analysis{}, nil, fmt.Errorf("no candidates in gemini response")
	}

	out, content, err := llm.DecodeAnalysis([]byte(text), c.cfg.LenientOptional, c.logger)
	if err != nil {
		return llm.Analysis{}, content, err
	}

	attrs := []any{
		"req_id", rid,
		"backend", c.Name(),
		"text_len", len(out.Text),
		"pages", out.PageCount,
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		attrs = append(attrs,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"completion_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}
	c.logger.Info("llm.analyze.ok", attrs...)
	return out, content, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// classify maps API errors onto llm.StatusError so retry policy stays backend agnostic.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
