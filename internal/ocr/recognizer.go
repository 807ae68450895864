package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Recognizer turns one image into text. It is the blocking optical recognition call.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractCLI runs the tesseract binary through a Runner.
type TesseractCLI struct {
	Runner      Runner
	Binary      string
	Lang        string
	TessdataDir string
}

func (t TesseractCLI) Recognize(ctx context.Context, imagePath string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{imagePath, "stdout", "-l", t.Lang}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	out, errb, err := t.Runner.Run(ctx, t.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
