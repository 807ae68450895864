package constants

import "strings"

// Source formats stored on SourceDocument.Format.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TEXT  = "TEXT"
)

// DefaultMaxFileBytes is the default per-document size limit (50 MB).
const DefaultMaxFileBytes int64 = 50 << 20

// AllowedExtensions maps the accepted extensions (lowercase, sans '.') to a format.
var AllowedExtensions = map[string]string{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"tiff": IMAGE,
	"tif":  IMAGE,
	"bmp":  IMAGE,
	"txt":  TEXT,
	"rtf":  TEXT,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the format for ext, or "" when unsupported.
func MapExtToFormat(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// IsRTFExt reports whether ext denotes a rich text file.
func IsRTFExt(ext string) bool {
	return NormalizeExt(ext) == "rtf"
}
