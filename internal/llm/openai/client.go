package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
)

// Analyze implements llm.DocumentAnalyzer over chat/completions. PDFs go up
// as an inline file part, images as an image_url data URL.
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

	if c.cfg.APIKey == "" {
		return llm.Analysis{}, nil, fmt.Errorf("openai: missing api key")
	}

	part, err := documentPart(req)
	if err != nil {
		c.logger.Warn("llm.analyze.unsupported_mime", "req_id", rid, "mime", req.MIMEType)
		return llm.Analysis{}, nil, err
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildUserPrompt(req, true)},
				part,
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, httpErr := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if httpErr != nil {
		c.logger.Error("llm.analyze.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Analysis{}, raw, fmt.Errorf("openai: %w", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.analyze.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Analysis{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.analyze.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Analysis{}, raw, fmt.Errorf("no choices in openai response")
	}

	out, content, err := llm.DecodeAnalysis([]byte(cc.Choices[0].Message.Content), c.cfg.LenientOptional, c.logger)
	if err != nil {
		return llm.Analysis{}, content, err
	}

	c.logger.Info("llm.analyze.ok",
		"req_id", rid,
		"backend", c.Name(),
		"text_len", len(out.Text),
		"pages", out.PageCount,
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func documentPart(req llm.AnalyzeRequest) (map[string]any, error) {
	mt := constants.NormalizeMIME(req.MIMEType)
	switch {
	case mt == "application/pdf":
		name := req.FileName
		if name == "" {
			name = "document.pdf"
		}
		return map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  name,
				"file_data": llm.DataURL(req.Data, mt),
			},
		}, nil
	case llm.CanAttachInline(mt):
		return map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": llm.DataURL(req.Data, mt)},
		}, nil
	}
	return nil, fmt.Errorf("openai: cannot attach %q inline", req.MIMEType)
}
