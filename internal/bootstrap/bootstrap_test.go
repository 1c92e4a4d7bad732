package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

func TestNewWithInMemoryUsageStore(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Database.Driver = repository.DriverSQLite
	cfg.OCR.ArtifactCacheDir = t.TempDir()

	ctx := context.Background()
	rt, err := New(ctx, cfg, "policy-test", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(ctx)

	if rt.Usage == nil {
		t.Fatal("expected a usage repository for sqlite")
	}

	req := entity.NewExtractionRequest([]byte("plain text"), "text/plain", "notes.txt", "org-1", false)
	res := rt.Extractor.Extract(ctx, req)
	if res.Success || res.Method != constants.MethodNone {
		t.Fatalf("expected rejection, got %+v", res)
	}

	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rt.Orchestrator.Drain(dctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	recs, err := rt.Usage.ListByTenant(ctx, "org-1", repository.UsageFilter{})
	if err != nil {
		t.Fatalf("ListByTenant: %v", err)
	}
	if len(recs) != 1 || recs[0].Outcome != constants.UsageOutcomeRejected || recs[0].FileName != "notes.txt" {
		t.Fatalf("unexpected usage %+v", recs)
	}
}

func TestNewWithoutSinks(t *testing.T) {
	cfg := common.DefaultConfig()
	ctx := context.Background()
	rt, err := New(ctx, cfg, "policy-test", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(ctx)

	if rt.Usage != nil || rt.DB != nil {
		t.Fatal("postgres without a DSN should leave usage persistence off")
	}
	res := rt.Extractor.Extract(ctx, entity.NewExtractionRequest(nil, "application/pdf", "empty.pdf", "", false))
	if res.Success {
		t.Fatal("empty document should fail")
	}
}

func TestProvidersCloudTier(t *testing.T) {
	cfg := common.DefaultConfig()
	p, err := Providers(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if p.Text == nil || p.OCR == nil || p.Cloud != nil {
		t.Fatalf("expected local tiers only, got %+v", p)
	}

	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAIAPIKey = "sk-test"
	p, err = Providers(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if p.Cloud == nil || p.Cloud.Method() != constants.MethodCloud {
		t.Fatalf("expected cloud tier, got %+v", p.Cloud)
	}

	cfg.LLM.Provider = "azure"
	if _, err := Providers(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
