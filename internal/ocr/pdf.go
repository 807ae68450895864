package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/docintake/internal/common"
)

// pdfDocument exposes the two in-document text representations of a PDF.
type pdfDocument interface {
	PageCount() int
	NativeText(page int) (string, error)
	ContentStreamText(page int) string
	Close() error
}

// openPDF is swapped in tests.
var openPDF = openPDFDocument

type pdfFile struct {
	file   *os.File
	reader *pdf.Reader
	cpu    *model.Context
	pages  int
}

// openPDFDocument opens path with both readers; it fails only when neither can parse it.
func openPDFDocument(path string) (pdfDocument, error) {
	d := &pdfFile{}

	nativeErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pdf reader panic: %v", r)
			}
		}()
		f, r, err := pdf.Open(path)
		if err != nil {
			return err
		}
		d.file, d.reader, d.pages = f, r, r.NumPage()
		return nil
	}()

	cpuErr := func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
		if err != nil {
			return err
		}
		d.cpu = ctx
		if d.pages == 0 {
			d.pages = ctx.PageCount
		}
		return nil
	}()

	if nativeErr != nil && cpuErr != nil {
		return nil, errors.Join(nativeErr, cpuErr)
	}
	return d, nil
}

func (d *pdfFile) PageCount() int { return d.pages }

func (d *pdfFile) NativeText(page int) (text string, err error) {
	if d.reader == nil {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: pdf reader panic: %v", page, r)
		}
	}()
	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

func (d *pdfFile) ContentStreamText(page int) string {
	if d.cpu == nil || page > d.cpu.PageCount {
		return ""
	}
	r, err := pdfcpu.ExtractPageContent(d.cpu, page)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromContentStream(data)
}

func (d *pdfFile) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractedText, error) {
	doc, err := openPDF(path)
	if err != nil {
		return ExtractedText{}, common.NewAppError("FILE_UNREADABLE", filepath.Base(path),
			fmt.Errorf("%w: %v", common.ErrUnreadableFile, err))
	}
	defer func(doc pdfDocument) {
		_ = doc.Close()
	}(doc)

	n := doc.PageCount()
	if n <= 0 {
		return ExtractedText{}, common.NewAppError("FILE_UNREADABLE", filepath.Base(path)+": no pages",
			common.ErrUnreadableFile)
	}

	res := ExtractedText{Pages: n, Segments: make([]Segment, n)}
	total := 0
	for p := 1; p <= n; p++ {
		seg := Segment{Index: p, Method: MethodNative}
		txt, err := doc.NativeText(p)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
		seg.Text = Clean(txt)
		if seg.Text == "" {
			seg.Text = Clean(doc.ContentStreamText(p))
			seg.Method = MethodContentStream
		}
		total += usableChars(seg.Text)
		res.Segments[p-1] = seg
	}

	limit := min(n, e.cfg.MaxOCRPages)
	if total < e.cfg.MinNativeChars {
		e.logger.Info("ocr.pdf.fallback", "path", path, "native_chars", total, "pages", n, "ocr_pages", limit)
		texts, warns := e.recognizePages(ctx, path, 1, limit)
		res.Warnings = append(res.Warnings, warns...)
		for p := 1; p <= limit; p++ {
			if t := texts[p]; t != "" {
				res.Segments[p-1] = Segment{Index: p, Text: t, Method: MethodRenderedOCR}
			}
		}
		if n > limit {
			res.Warnings = append(res.Warnings, fmt.Sprintf("ocr limited to first %d of %d pages", limit, n))
		}
	} else {
		budget := limit
		for i := range res.Segments {
			if res.Segments[i].Text != "" || budget == 0 {
				continue
			}
			budget--
			p := i + 1
			texts, warns := e.recognizePages(ctx, path, p, p)
			res.Warnings = append(res.Warnings, warns...)
			if t := texts[p]; t != "" {
				res.Segments[i] = Segment{Index: p, Text: t, Method: MethodOCR}
			}
		}
	}

	for i := range res.Segments {
		if res.Segments[i].Text == "" {
			res.Segments[i] = placeholder(i + 1)
		}
	}
	return res, nil
}

// recognizePages renders pages first..last and runs recognition on each image.
// Failures become warnings; the caller falls back to placeholders.
func (e *Extractor) recognizePages(ctx context.Context, path string, first, last int) (map[int]string, []string) {
	images, cleanup, err := e.renderPages(ctx, path, first, last)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return nil, []string{err.Error()}
	}

	out := make(map[int]string, len(images))
	var warns []string
	for p := first; p <= last; p++ {
		img, ok := images[p]
		if !ok {
			continue
		}
		txt, err := e.recognizer.Recognize(ctx, img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", p, err))
			continue
		}
		out[p] = Clean(txt)
	}
	return out, warns
}

// renderPages rasterizes pages with pdftoppm and maps page number to PNG path.
func (e *Extractor) renderPages(ctx context.Context, path string, first, last int) (map[int]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "docintake-pp-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f 1 -l 10 <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png",
		"-f", strconv.Itoa(first), "-l", strconv.Itoa(last),
		path, prefix)
	if err != nil {
		return nil, cleanup, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}

	// pdftoppm zero-pads page numbers to the width of the page count
	matches, _ := filepath.Glob(prefix + "-*.png")
	images := make(map[int]string, len(matches))
	for _, m := range matches {
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "page-"), ".png")
		p, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		images[p] = m
	}
	if len(images) == 0 {
		return nil, cleanup, errors.New("pdftoppm produced no images")
	}
	return images, cleanup, nil
}

// textFromContentStream pulls string operands of the text-showing operators
// (Tj, TJ, ' and ") out of a decoded page content stream.
func textFromContentStream(data []byte) string {
	var b strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			b.WriteString(pdfStrings(line))
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			b.WriteByte('\n')
			b.WriteString(pdfStrings(line))
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")), bytes.Equal(line, []byte("T*")):
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// pdfStrings concatenates the literal (...) strings on one operator line.
func pdfStrings(line []byte) string {
	var raw []byte
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case depth == 0 && c == '(':
			depth = 1
		case depth == 0:
		case c == '\\' && i+1 < len(line):
			i++
			switch e := line[i]; e {
			case 'n':
				raw = append(raw, '\n')
			case 'r', 't', 'b', 'f':
				raw = append(raw, ' ')
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for k := 0; k < 2 && i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '7'; k++ {
					i++
					v = v*8 + int(line[i]-'0')
				}
				raw = append(raw, byte(v))
			default:
				raw = append(raw, e)
			}
		case c == '(':
			depth++
			raw = append(raw, c)
		case c == ')':
			depth--
			if depth > 0 {
				raw = append(raw, c)
			}
		default:
			raw = append(raw, c)
		}
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}
