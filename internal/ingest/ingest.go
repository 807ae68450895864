package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// Open validates path and builds its SourceDocument.
// Checks run in a fixed order: stat, size limit, extension, then the content is hashed.
// maxBytes <= 0 means constants.DefaultMaxFileBytes.
func Open(path string, maxBytes int64) (entity.SourceDocument, error) {
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxFileBytes
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.SourceDocument{}, common.NewAppError("FILE_UNREADABLE", path, fmt.Errorf("%w: %v", common.ErrUnreadableFile, err))
	}
	st, err := os.Stat(abs)
	if err != nil {
		return entity.SourceDocument{}, common.NewAppError("FILE_UNREADABLE", path, fmt.Errorf("%w: %v", common.ErrUnreadableFile, err))
	}
	if st.IsDir() {
		return entity.SourceDocument{}, common.NewAppError("FILE_UNREADABLE", path+" is a directory", common.ErrUnreadableFile)
	}
	if st.Size() > maxBytes {
		return entity.SourceDocument{}, common.NewAppError("DOCUMENT_TOO_LARGE",
			fmt.Sprintf("%s is %d bytes, limit is %d", filepath.Base(abs), st.Size(), maxBytes),
			common.ErrDocumentTooLarge)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		return entity.SourceDocument{}, common.NewAppError("UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("extension %q is not supported", ext),
			common.ErrUnsupportedFileType)
	}

	sum, err := hashFile(abs)
	if err != nil {
		return entity.SourceDocument{}, common.NewAppError("FILE_UNREADABLE", path, fmt.Errorf("%w: %v", common.ErrUnreadableFile, err))
	}

	return entity.SourceDocument{
		Path:        abs,
		Name:        filepath.Base(abs),
		Ext:         ext,
		Format:      format,
		Size:        st.Size(),
		ContentHash: sum,
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
