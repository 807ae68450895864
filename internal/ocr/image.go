package ocr

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/joseph-ayodele/docintake/internal/common"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractedText, error) {
	res := ExtractedText{Pages: 1}

	src := path
	if e.cfg.NormalizeImage {
		out, cleanup, err := normalizeImage(path, e.cfg.MinImageWidth)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			// recognition still runs on the untouched file
			res.Warnings = append(res.Warnings, fmt.Sprintf("image normalization skipped: %v", err))
			e.logger.Debug("ocr.image.normalize_skipped", "path", path, "error", err)
		} else {
			src = out
		}
	}

	txt, err := e.recognizer.Recognize(ctx, src)
	if err != nil {
		return res, common.NewAppError("OCR_FAILED", filepath.Base(path), fmt.Errorf("%w: %v", common.ErrNoUsableText, err))
	}

	seg := Segment{Index: 1, Text: Clean(txt), Method: MethodOCR}
	if seg.Text == "" {
		seg = placeholder(1)
	}
	res.Segments = []Segment{seg}
	return res, nil
}

// normalizeImage writes a grayscale copy of path, upscaled to at least minWidth
// pixels wide, as a temporary PNG.
func normalizeImage(path string, minWidth int) (string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	src, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return "", nil, fmt.Errorf("decode: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return "", nil, fmt.Errorf("empty image")
	}
	if w < minWidth {
		h = h * minWidth / w
		w = minWidth
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() {
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(gray, gray.Bounds(), src, b, draw.Src, nil)
	}

	tmp, err := os.CreateTemp("", "docintake-img-*.png")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if err := png.Encode(tmp, gray); err != nil {
		_ = tmp.Close()
		return "", cleanup, fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", cleanup, err
	}
	return tmp.Name(), cleanup, nil
}
