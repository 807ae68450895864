package export

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docintake/internal/pipeline"
)

const (
	documentsSheet = "Documents"
	summarySheet   = "Summary"
)

// Exporter renders batch results as XLSX workbooks.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// WriteBatchXLSX renders results with the default logger.
func WriteBatchXLSX(results []pipeline.Result) ([]byte, error) {
	return NewExporter(nil).BatchXLSX(results)
}

// BatchXLSX returns a workbook with one row per document, in input order, and a summary sheet.
func (e *Exporter) BatchXLSX(results []pipeline.Result) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func(f *excelize.File) {
		_ = f.Close()
	}(f)

	if err := f.SetSheetName("Sheet1", documentsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	headers := []string{
		"File",
		"Status",
		"Document Type",
		"Classification Confidence",
		"Schema",
		"Model Confidence",
		"Extraction Quality",
		"Mapped",
		"Elapsed (s)",
		"Errors",
		"Warnings",
	}
	writeRow(f, documentsSheet, 1, toAny(headers))

	var (
		succeeded  int
		qualitySum float64
		byType     = map[string]int{}
	)
	for i, r := range results {
		docType, classConf := "", ""
		if r.Classification != nil {
			docType = string(r.Classification.Type)
			classConf = fmt.Sprintf("%.2f", r.Classification.Confidence)
			byType[docType]++
		}
		status := "failed"
		if r.Success {
			status = "ok"
			succeeded++
		}
		mapped := ""
		if r.Entity != nil {
			mapped = string(r.Entity.Kind())
		}
		qualitySum += r.Quality
		writeRow(f, documentsSheet, i+2, []any{
			r.Path(),
			status,
			docType,
			classConf,
			string(r.Schema),
			r.Confidence,
			r.Quality,
			mapped,
			r.Elapsed.Seconds(),
			truncate(strings.Join(r.Errors, "; "), 500),
			truncate(strings.Join(r.Warnings, "; "), 500),
		})
	}

	_ = f.SetColWidth(documentsSheet, "A", "A", 60) // path
	_ = f.SetColWidth(documentsSheet, "B", "I", 16)
	_ = f.SetColWidth(documentsSheet, "J", "K", 60) // messages

	writeRow(f, summarySheet, 1, []any{"Documents", len(results)})
	writeRow(f, summarySheet, 2, []any{"Succeeded", succeeded})
	writeRow(f, summarySheet, 3, []any{"Failed", len(results) - succeeded})
	mean := 0.0
	if len(results) > 0 {
		mean = qualitySum / float64(len(results))
	}
	writeRow(f, summarySheet, 4, []any{"Mean Extraction Quality", mean})

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	row := 6
	writeRow(f, summarySheet, row, []any{"Document Type", "Count"})
	for _, t := range types {
		row++
		writeRow(f, summarySheet, row, []any{t, byType[t]})
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	e.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"failed", len(results)-succeeded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
