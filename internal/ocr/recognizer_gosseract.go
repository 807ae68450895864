//go:build gosseract

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// GosseractRecognizer uses libtesseract in-process instead of the CLI.
type GosseractRecognizer struct {
	Lang        string
	TessdataDir string
}

func (g GosseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func(client *gosseract.Client) {
		_ = client.Close()
	}(client)

	if g.TessdataDir != "" {
		if err := client.SetTessdataPrefix(g.TessdataDir); err != nil {
			return "", fmt.Errorf("gosseract tessdata: %w", err)
		}
	}
	if err := client.SetLanguage(g.Lang); err != nil {
		return "", fmt.Errorf("gosseract language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("gosseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(text, ""), nil
}

func defaultRecognizer(cfg Config, _ Runner) Recognizer {
	return GosseractRecognizer{Lang: cfg.TesseractLang, TessdataDir: cfg.TessdataDir}
}
