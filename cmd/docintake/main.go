package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/docintake/internal/app"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/export"
	"github.com/joseph-ayodele/docintake/internal/ingest"
	"github.com/joseph-ayodele/docintake/internal/llm"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory to process (recursive); files may also be given as arguments")
		schema     = flag.String("schema", "", "pin the extraction schema (default: chosen from the document type)")
		out        = flag.String("out", "", "write an XLSX batch summary to this path")
		showHidden = flag.Bool("hidden", false, "include hidden files when scanning -dir")
	)
	flag.Parse()

	paths := flag.Args()
	if *dir != "" {
		found, stats, err := ingest.Discover(*dir, !*showHidden)
		if err != nil {
			printError("Error: scan %s: %v\n", *dir, err)
			os.Exit(1)
		}
		if stats.Failed > 0 {
			printError("Warning: %d entries under %s could not be read\n", stats.Failed, *dir)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		printError("Usage: docintake [-dir DIR] [-schema NAME] [-out summary.xlsx] [FILE...]\n")
		os.Exit(2)
	}
	if *schema != "" {
		if _, err := llm.Lookup(llm.SchemaName(*schema)); err != nil {
			printError("Error: %v (known: %v)\n", err, llm.SchemaNames())
			os.Exit(2)
		}
	}

	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, true)

	// SIGINT stops the batch at the next stage boundary
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{}, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	results := a.Processor.RunMany(ctx, paths, llm.SchemaName(*schema))

	failed := 0
	for _, r := range results {
		if r.Success {
			logger.Info("batch.result.ok",
				"path", r.Path(),
				"run_id", r.Run.ID,
				"schema", r.Schema,
				"confidence", r.Confidence,
				"mapped", r.Entity != nil,
				"warnings", r.Warnings,
			)
			continue
		}
		failed++
		logger.Error("batch.result.failed", "path", r.Path(), "run_id", r.Run.ID, "errors", r.Errors)
	}

	if *out != "" {
		b, err := export.NewExporter(logger).BatchXLSX(results)
		if err != nil {
			logger.Error("export failed", "err", err)
			os.Exit(1)
		}
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			logger.Error("export failed", "err", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, b, 0o644); err != nil {
			logger.Error("export failed", "err", err)
			os.Exit(1)
		}
		logger.Info("batch.summary.written", "path", *out)
	}

	logger.Info("batch.done", "documents", len(results), "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
