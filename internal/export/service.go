package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

const (
	ResultsSheet = "Policies"
	UsageSheet   = "Usage"
)

// Row is one exported document: the extraction outcome and its validation.
type Row struct {
	Path       string
	Result     entity.ExtractionResult
	Validation entity.ValidationReport
}

// Service renders batch results as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportResultsXLSX returns a workbook (as bytes) with one row per document.
// When usage is non-empty a second sheet carries the per-method summary.
func (s *Service) ExportResultsXLSX(ctx context.Context, rows []Row, usage []entity.UsageSummary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet instead of leaving an empty one behind
	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return nil, err
	}

	headers := []string{"File", "Success", "Method", "Confidence", "Cost", "Pages"}
	for _, n := range entity.FieldNames {
		headers = append(headers, titleCase(n.Label()))
	}
	headers = append(headers, "Valid", "Issues", "Error")
	if err := writeHeader(f, ResultsSheet, headers); err != nil {
		return nil, err
	}

	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ResultsSheet, cell, v)
		}

		name := r.Path
		if name == "" {
			name = r.Result.Metadata.FileName
		}
		write(1, name)
		write(2, r.Result.Success)
		write(3, string(r.Result.Method))
		write(4, r.Result.Confidence)
		write(5, r.Result.Cost)
		write(6, r.Result.Metadata.PageCount)
		col := 7
		for _, n := range entity.FieldNames {
			write(col, r.Result.Fields.Value(n))
			col++
		}
		write(col, r.Validation.IsValid)
		write(col+1, truncate(strings.Join(r.Validation.Issues, "; "), 200))
		write(col+2, truncate(r.Result.Metadata.Error, 140))
	}

	_ = f.SetColWidth(ResultsSheet, "A", "A", 40)
	_ = f.SetColWidth(ResultsSheet, "B", "F", 12)
	first, _ := excelize.ColumnNumberToName(7)
	last, _ := excelize.ColumnNumberToName(6 + len(entity.FieldNames))
	_ = f.SetColWidth(ResultsSheet, first, last, 24)
	_ = f.SetPanes(ResultsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if len(usage) > 0 {
		if err := writeUsage(f, usage); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"usage_rows", len(usage),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeUsage(f *excelize.File, usage []entity.UsageSummary) error {
	if _, err := f.NewSheet(UsageSheet); err != nil {
		return err
	}
	if err := writeHeader(f, UsageSheet, []string{"Method", "Documents", "Total Cost", "Avg Confidence"}); err != nil {
		return err
	}
	for i, u := range usage {
		row := i + 2
		vals := []any{string(u.Method), u.Documents, u.TotalCost, u.AvgConfidence}
		for c, v := range vals {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(UsageSheet, cell, v)
		}
	}
	_ = f.SetColWidth(UsageSheet, "A", "D", 16)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	end, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", end, style)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
