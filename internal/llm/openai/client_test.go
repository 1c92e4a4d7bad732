package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
)

func completion(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestAnalyzePDF(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write(completion(t, `{"extracted_text":"Policy Number: HO-1234567","page_count":1,"fields":{"policy_number":"HO-1234567"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)
	a, raw, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte("%PDF-1.4"), MIMEType: "application/pdf", FileName: "dec.pdf"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected raw json")
	}
	if a.Fields.Value(entity.FieldPolicyNumber) != "HO-1234567" || a.PageCount != 1 {
		t.Fatalf("unexpected analysis %+v", a)
	}

	msgs := got["messages"].([]any)
	user := msgs[1].(map[string]any)["content"].([]any)
	part := user[1].(map[string]any)
	if part["type"] != "file" {
		t.Fatalf("expected pdf sent as file part, got %v", part["type"])
	}
}

func TestAnalyzeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, _, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte{1}, MIMEType: "image/png"})
	var se *llm.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests || !se.Retryable() {
		t.Fatalf("expected retryable status error, got %v", err)
	}
}

func TestAnalyzeRejectsHEIC(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, nil)
	if _, _, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte{1}, MIMEType: "image/heic"}); err == nil {
		t.Fatalf("expected error for heic")
	}
}

func TestAnalyzeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	if _, _, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte{1}, MIMEType: "image/jpeg"}); err == nil {
		t.Fatalf("expected error")
	}
}
