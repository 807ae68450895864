package ocr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

func textDoc(t *testing.T, name string, content []byte) entity.SourceDocument {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0o644))
	ext := constants.NormalizeExt(filepath.Ext(name))
	return entity.SourceDocument{Path: p, Name: name, Ext: ext, Format: constants.MapExtToFormat(ext), Size: int64(len(content))}
}

func TestDecodeTextOrder(t *testing.T) {
	s, enc, err := decodeText([]byte("\xEF\xBB\xBFcittà"))
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	assert.Equal(t, "città", s)

	// 0xE0 is 'à' and 0x80 is the euro sign in Windows-1252
	s, enc, err = decodeText([]byte("citt\xE0 \x80"))
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", enc)
	assert.Equal(t, "città €", s)

	// 0x81 is undefined in Windows-1252, so Latin-1 takes it
	s, enc, err = decodeText([]byte("Fattura n. 12 \x81 totale"))
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", enc)
	assert.Equal(t, "Fattura n. 12 \u0081 totale", s)
}

func TestDecodeTextKeepsControlCharacters(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		enc  string
		want string
	}{
		{"vertical tab", "Certificato di morte\vdecesso", "utf-8", "Certificato di morte decesso"},
		{"nul", "decesso\x00 Rossi", "utf-8", "decesso Rossi"},
		{"ctrl-z after latin-1", "citt\xE0 di Roma\x1A", "windows-1252", "città di Roma"},
		{"undefined windows-1252 byte", "Fattura n. 12 \x81 totale", "iso-8859-1", "Fattura n. 12 totale"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, enc, err := decodeText([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.enc, enc)
			assert.Equal(t, tc.want, Clean(s))
		})
	}
}

func TestExtractText(t *testing.T) {
	e := NewExtractor(Config{}, nil)

	t.Run("plain text", func(t *testing.T) {
		res, ok, err := e.Extract(context.Background(), textDoc(t, "nota.txt", []byte("Certificato di morte\r\n\r\ndecesso   avvenuto")))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Certificato di morte\n\ndecesso avvenuto", res.Text)
		require.Len(t, res.Segments, 1)
		assert.Equal(t, MethodEncodingText, res.Segments[0].Method)
		assert.Equal(t, 1.0, res.Quality)
	})

	t.Run("whitespace only", func(t *testing.T) {
		res, ok, err := e.Extract(context.Background(), textDoc(t, "vuoto.txt", []byte(" \n\t\u200b\n")))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, res.Text)
		assert.Equal(t, 0.0, res.Quality)
	})

	t.Run("stray control bytes", func(t *testing.T) {
		res, ok, err := e.Extract(context.Background(), textDoc(t, "sporco.txt", []byte("\x00Rossi\x1A \xE0\x01")))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Rossi à", res.Text)
	})

	t.Run("control bytes only", func(t *testing.T) {
		res, ok, err := e.Extract(context.Background(), textDoc(t, "bin.txt", []byte{0x00, 0x01, 0x02}))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, res.Text)
	})

	t.Run("rtf", func(t *testing.T) {
		rtf := `{\rtf1\ansi\deff0{\fonttbl{\f0 Times New Roman;}}{\*\generator Riched20;}` +
			`\f0\fs24 Certificato di morte\par Citt\'e0 di Roma\tab n.\~12\par \u8364? 100}`
		res, ok, err := e.Extract(context.Background(), textDoc(t, "lettera.rtf", []byte(rtf)))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Certificato di morte\nCittà di Roma n. 12\n€ 100", res.Text)
	})
}
