package ocr

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacy encodings tried after UTF-8, in priority order; a candidate is skipped
// when the input holds one of its undefined bytes
var legacyEncodings = []struct {
	name      string
	enc       encoding.Encoding
	undefined []byte
}{
	{"windows-1252", charmap.Windows1252, []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}},
	{"iso-8859-1", charmap.ISO8859_1, nil},
}

func (e *Extractor) extractText(path, ext string) (ExtractedText, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ExtractedText{}, common.NewAppError("FILE_UNREADABLE", filepath.Base(path),
			fmt.Errorf("%w: %v", common.ErrUnreadableFile, err))
	}

	txt, enc, err := decodeText(raw)
	if err != nil {
		return ExtractedText{}, common.NewAppError("TEXT_UNDECODABLE", filepath.Base(path), err)
	}
	if constants.IsRTFExt(ext) {
		txt = stripRTF(txt)
	}
	e.logger.Debug("ocr.text.decoded", "path", path, "encoding", enc, "bytes", len(raw))

	res := ExtractedText{Pages: 1}
	seg := Segment{Index: 1, Text: Clean(txt), Method: MethodEncodingText}
	if seg.Text != "" {
		res.Segments = []Segment{seg}
	}
	return res, nil
}

// decodeText tries UTF-8, then the legacy single-byte encodings in order.
// Control characters are left for Clean.
func decodeText(raw []byte) (string, string, error) {
	b := bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(b) {
		return string(b), "utf-8", nil
	}
	for _, le := range legacyEncodings {
		if slices.ContainsFunc(raw, func(c byte) bool { return bytes.IndexByte(le.undefined, c) >= 0 }) {
			continue
		}
		out, err := le.enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		return string(out), le.name, nil
	}
	return "", "", common.ErrUndecodableText
}

// rtf destinations whose content is never document text
var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "footer": true, "listtable": true,
	"listoverridetable": true, "rsidtbl": true, "generator": true, "xmlnstbl": true,
}

// stripRTF reduces RTF markup to its plain text. Hex escapes are read as Windows-1252.
func stripRTF(s string) string {
	var out strings.Builder
	type group struct{ skip bool }
	stack := []group{{}}
	skipping := func() bool { return stack[len(stack)-1].skip }
	ucSkip := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			stack = append(stack, group{skip: skipping()})
			if strings.HasPrefix(s[i+1:], `\*`) {
				stack[len(stack)-1].skip = true
			}
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case '\\':
			if i+1 >= len(s) {
				continue
			}
			next := s[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if !skipping() {
					out.WriteByte(next)
				}
				i++
			case next == '\'' && i+3 < len(s):
				if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil && !skipping() {
					if ucSkip > 0 {
						ucSkip--
					} else if r, err := charmap.Windows1252.NewDecoder().Bytes([]byte{byte(v)}); err == nil {
						out.Write(r)
					}
				}
				i += 3
			case isASCIILetter(next):
				j := i + 1
				for j < len(s) && isASCIILetter(s[j]) {
					j++
				}
				word := s[i+1 : j]
				k := j
				if k < len(s) && (s[k] == '-' || isDigit(s[k])) {
					k++
					for k < len(s) && isDigit(s[k]) {
						k++
					}
				}
				param := s[j:k]
				if k < len(s) && s[k] == ' ' {
					k++
				}
				i = k - 1

				if rtfSkipDestinations[word] {
					stack[len(stack)-1].skip = true
					continue
				}
				if skipping() {
					continue
				}
				switch word {
				case "par", "line", "sect", "page":
					out.WriteByte('\n')
				case "tab", "cell":
					out.WriteByte(' ')
				case "row":
					out.WriteByte('\n')
				case "u":
					if n, err := strconv.Atoi(param); err == nil {
						if n < 0 {
							n += 65536
						}
						out.WriteRune(rune(n))
						ucSkip = 1
					}
				}
			default:
				// control symbol such as \~ or \-
				if next == '~' && !skipping() {
					out.WriteByte(' ')
				}
				i++
			}
		case '\r', '\n':
		default:
			if skipping() {
				continue
			}
			if ucSkip > 0 {
				ucSkip--
				continue
			}
			out.WriteByte(c)
		}
	}
	return out.String()
}

func isASCIILetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool       { return c >= '0' && c <= '9' }
