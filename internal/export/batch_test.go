package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/classify"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
)

func TestWriteBatchXLSX(t *testing.T) {
	results := []pipeline.Result{
		{
			Success:        true,
			Entity:         &entity.Deceased{FirstName: "MARIO", LastName: "ROSSI"},
			Confidence:     0.9,
			Quality:        1,
			Classification: &classify.Result{Type: constants.DeathCertificate, Confidence: 0.5},
			Schema:         llm.SchemaDeath,
			Elapsed:        2 * time.Second,
			Run:            pipeline.Run{Path: "/in/a.pdf", Status: constants.RunStatusCompleted},
		},
		{
			Errors:  []string{"ingest: DOCUMENT_TOO_LARGE: file exceeds limit"},
			Elapsed: 10 * time.Millisecond,
			Run:     pipeline.Run{Path: "/in/b.pdf", Status: constants.RunStatusFailed},
		},
	}

	b, err := WriteBatchXLSX(results)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(documentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "File", rows[0][0])
	assert.Equal(t, []string{"/in/a.pdf", "ok", "death-certificate", "0.50", "decesso"}, rows[1][:5])
	assert.Equal(t, "deceased", rows[1][7])
	assert.Equal(t, "/in/b.pdf", rows[2][0])
	assert.Equal(t, "failed", rows[2][1])
	assert.Equal(t, "ingest: DOCUMENT_TOO_LARGE: file exceeds limit", rows[2][9])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Documents", "2"}, summary[0])
	assert.Equal(t, []string{"Succeeded", "1"}, summary[1])
	assert.Equal(t, []string{"Failed", "1"}, summary[2])
	assert.Equal(t, []string{"death-certificate", "1"}, summary[6])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
