package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/docintake/internal/app"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/ingest"
)

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, true)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}

	doc, err := ingest.Open(os.Args[1], cfg.Pipeline.MaxFileBytes)
	if err != nil {
		logger.Error("open failed", "path", os.Args[1], "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, ok, err := app.NewExtractor(cfg.OCR, logger).Extract(ctx, doc)
	if err != nil {
		logger.Error("text extraction failed", "path", doc.Path, "err", err)
		os.Exit(1)
	}
	for _, seg := range res.Segments {
		fmt.Printf("--- segment %d [%s] ---\n%s\n", seg.Index, seg.Method, seg.Text)
	}
	logger.Info("text extraction done",
		"path", doc.Path,
		"usable", ok,
		"pages", res.Pages,
		"quality", res.Quality,
		"bytes", len(res.Text),
		"warnings", res.Warnings,
		"duration_ms", res.Duration.Milliseconds(),
	)
	if !ok {
		os.Exit(1)
	}
}
