package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/policy-extractor/internal/bootstrap"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/ingest"
	"github.com/joseph-ayodele/policy-extractor/internal/observability/logging"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
)

type output struct {
	Result     entity.ExtractionResult `json:"result"`
	Validation entity.ValidationReport `json:"validation"`
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("POLICY_CONFIG"), "optional YAML config file")
		file       = flag.String("file", "", "path to a policy PDF or image (required)")
		tenant     = flag.String("tenant", "", "tenant id recorded with usage")
		premium    = flag.Bool("premium", false, "skip straight to the cloud tier")
		withText   = flag.Bool("text", false, "include the extracted text in the output")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall extraction timeout")
	)
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: extractone -file <path> [-premium] [-tenant id]")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	// logs go to stderr so stdout stays machine readable
	logger := logging.New(logging.Options{Service: "extractone", Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: os.Stderr})

	req, _, err := ingest.LoadFile(*file, *tenant, *premium, int64(cfg.Server.MaxDocumentBytes))
	if err != nil {
		logger.Error("failed to load file", "file", *file, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := bootstrap.New(ctx, cfg, "extractone", logger)
	if err != nil {
		logger.Error("failed to start extraction runtime", "error", err)
		os.Exit(1)
	}
	res := rt.Extractor.Extract(ctx, req)
	rt.Close(context.Background())

	rep := pipeline.Validate(res)
	if !*withText {
		res.ExtractedText = ""
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Result: res, Validation: rep}); err != nil {
		logger.Error("failed to write result", "error", err)
		os.Exit(1)
	}
	if !res.Success {
		os.Exit(1)
	}
}
