package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// Method tags the strategy that produced a segment.
type Method string

const (
	MethodNative        Method = "native"
	MethodContentStream Method = "content-stream"
	MethodRenderedOCR   Method = "rendered-fallback"
	MethodOCR           Method = "optical-recognition"
	MethodEncodingText  Method = "encoding-detected-text"
	MethodPlaceholder   Method = "placeholder"
)

const (
	defaultMinImageWidth = 1600
	placeholderTemplate  = "[pagina %d: contenuto non testuale o protetto]"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "ita"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxOCRPages   int // pages rendered for OCR per document, default 10

	// MinNativeChars is the aggregate native length under which a PDF is treated as scanned.
	MinNativeChars int
	NormalizeImage bool
	MinImageWidth  int
}

// Segment is one unit of extracted text: a page, or the whole file for flat formats.
type Segment struct {
	Index       int
	Text        string
	Method      Method
	Placeholder bool
}

// ExtractedText is the immutable output of one extraction.
type ExtractedText struct {
	Text     string
	Segments []Segment
	Quality  float64 // non-placeholder segments / segments
	Pages    int
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg        Config
	runner     Runner
	recognizer Recognizer
	logger     *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "ita"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxOCRPages <= 0 {
		cfg.MaxOCRPages = 10
	}
	if cfg.MinNativeChars <= 0 {
		cfg.MinNativeChars = 50
	}
	if cfg.MinImageWidth <= 0 {
		cfg.MinImageWidth = defaultMinImageWidth
	}
	r := execRunner{logger: logger}
	return &Extractor{cfg: cfg, runner: r, recognizer: defaultRecognizer(cfg, r), logger: logger}
}

// WithRunner replaces the command runner used for rendering (and CLI recognition).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	if _, ok := e.recognizer.(TesseractCLI); ok {
		e.recognizer = TesseractCLI{Runner: r, Binary: e.cfg.Tesseract, Lang: e.cfg.TesseractLang, TessdataDir: e.cfg.TessdataDir}
	}
	return e
}

func (e *Extractor) WithRecognizer(r Recognizer) *Extractor {
	e.recognizer = r
	return e
}

// Extract produces text from doc with the format's fallback chain.
// ok is false when extraction technically succeeded but yielded no usable characters;
// in that case Text is empty. Errors are reserved for unreadable or undecodable input.
func (e *Extractor) Extract(ctx context.Context, doc entity.SourceDocument) (ExtractedText, bool, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", doc.Path, "format", doc.Format, "size", doc.Size)

	var (
		res ExtractedText
		err error
	)
	switch doc.Format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, doc.Path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, doc.Path)
	case constants.TEXT:
		res, err = e.extractText(doc.Path, doc.Ext)
	default:
		return ExtractedText{}, false, common.NewAppError("UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("format %q", doc.Format), common.ErrUnsupportedFileType)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("ocr.extract.failed", "path", doc.Path, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, false, err
	}

	res = finalize(res)
	ok := res.Text != ""
	e.logger.Info("ocr.extract.done",
		"path", doc.Path,
		"segments", len(res.Segments),
		"quality", res.Quality,
		"chars", len(res.Text),
		"ok", ok,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, ok, nil
}

// finalize computes Quality and the joined Text from the segments.
// A result with no usable characters outside placeholders gets an empty Text.
func finalize(res ExtractedText) ExtractedText {
	if len(res.Segments) == 0 {
		res.Text = ""
		res.Quality = 0
		return res
	}
	parts := make([]string, 0, len(res.Segments))
	good := 0
	usable := 0
	for _, s := range res.Segments {
		parts = append(parts, s.Text)
		if !s.Placeholder {
			good++
			usable += usableChars(s.Text)
		}
	}
	res.Quality = clamp01(float64(good) / float64(len(res.Segments)))
	if usable == 0 {
		res.Text = ""
		return res
	}
	res.Text = strings.Join(parts, "\n\n")
	return res
}

func placeholder(page int) Segment {
	return Segment{Index: page, Text: fmt.Sprintf(placeholderTemplate, page), Method: MethodPlaceholder, Placeholder: true}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
