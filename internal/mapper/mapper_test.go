package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
)

func str(s string) llm.Value { return llm.Value{Kind: llm.ValueString, Str: s} }

func extraction(fields map[string]llm.Value) llm.StructuredExtraction {
	return llm.StructuredExtraction{Fields: fields, Confidence: 0.8}
}

func TestMapDeceased(t *testing.T) {
	death, err := llm.Lookup(llm.SchemaDeath)
	require.NoError(t, err)

	got := Map(extraction(map[string]llm.Value{
		"nome":        str("MARIO"),
		"cognome":     str("ROSSI"),
		"dataNascita": str("1950-01-01"),
	}), death)
	require.NotNil(t, got)
	d, ok := got.(*entity.Deceased)
	require.True(t, ok)
	assert.Equal(t, &entity.Deceased{
		FirstName: "MARIO",
		LastName:  "ROSSI",
		BirthDate: time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
	}, d)
}

func TestMapDeceasedMissingName(t *testing.T) {
	death, _ := llm.Lookup(llm.SchemaDeath)
	got := Map(extraction(map[string]llm.Value{"cognome": str("ROSSI")}), death)
	assert.Nil(t, got)
}

func TestMapDeceasedAllFields(t *testing.T) {
	raw := `{"nome":"MARIO","cognome":"ROSSI","codiceFiscale":"rss mra 50a01 h501u","dataNascita":"01/01/1950",
		"luogoNascita":"Roma","dataDecesso":"2024-03-02","luogoDecesso":"Ospedale San Camillo","sesso":"M",
		"statoCivile":"vedovo","indirizzoResidenza":"Via Appia 1","cittaResidenza":"Roma",
		"paternita":"GIUSEPPE","maternita":"MARIA","confidence":0.9}`
	death, _ := llm.Lookup(llm.SchemaDeath)
	ex, err := llm.ParseWithSchema(raw, death)
	require.NoError(t, err)

	d := Map(ex, death).(*entity.Deceased)
	assert.Equal(t, "RSSMRA50A01H501U", d.FiscalCode)
	assert.Equal(t, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), d.BirthDate)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), d.DeathDate)
	assert.Equal(t, "Ospedale San Camillo", d.DeathPlace)
	assert.Equal(t, "M", d.Sex)
	assert.Equal(t, "GIUSEPPE", d.FatherName)
	assert.Equal(t, "MARIA", d.MotherName)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-02", "02/03/2024", "02-03-2024", "02.03.2024", "2/3/2024"} {
		assert.Equal(t, want, ParseDate(s), s)
	}
	assert.True(t, ParseDate("2 marzo 2024").IsZero())
	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("31/02/2024").IsZero())
}

func TestUnparseableDateKeepsDefault(t *testing.T) {
	d := ToDeceased(extraction(map[string]llm.Value{
		"nome": str("ANNA"), "cognome": str("VERDI"), "dataDecesso": str("ieri"), "sesso": str("X"),
	}))
	require.NotNil(t, d)
	assert.True(t, d.DeathDate.IsZero())
	assert.Empty(t, d.Sex)
}

func TestMapRelativeNestedHolder(t *testing.T) {
	rel, _ := llm.Lookup(llm.SchemaRelative)
	ex, err := llm.ParseWithSchema(`{
		"nome": "ALTRO", "cognome": "NOME", "parentela": "figlio",
		"intestatario": {"nome": "LUCA", "cognome": "BIANCHI", "telefono": "333 1234567", "email": "Luca@Example.it"}
	}`, rel)
	require.NoError(t, err)

	r := Map(ex, rel).(*entity.Relative)
	assert.Equal(t, "LUCA", r.FirstName)
	assert.Equal(t, "BIANCHI", r.LastName)
	assert.Equal(t, "333 1234567", r.Phone)
	assert.Equal(t, "luca@example.it", r.Email)
	assert.Equal(t, "figlio", r.Relationship)
}

func TestMapRelativeTopLevel(t *testing.T) {
	id, _ := llm.Lookup(llm.SchemaIdentity)
	ex, err := llm.ParseWithSchema(`{"nome":"LUCIA","cognome":"NERI","tipoDocumento":"CIE","numeroDocumento":"CA12345AB",
		"dataRilascio":"10.05.2020","dataScadenza":"2031-05-10","enteRilascio":"Comune di Milano"}`, id)
	require.NoError(t, err)

	r := Map(ex, id).(*entity.Relative)
	assert.Equal(t, "LUCIA", r.FirstName)
	assert.Equal(t, "CIE", r.DocumentType)
	assert.Equal(t, "CA12345AB", r.DocumentNumber)
	assert.Equal(t, time.Date(2020, 5, 10, 0, 0, 0, 0, time.UTC), r.DocumentIssuedAt)
	assert.Equal(t, time.Date(2031, 5, 10, 0, 0, 0, 0, time.UTC), r.DocumentExpiry)

	// same source mapped into another shape
	d := MapTo(ex, entity.KindDeceased, "").(*entity.Deceased)
	assert.Equal(t, "NERI", d.LastName)
}

func TestMapRelativeEmptyHolderFallsBack(t *testing.T) {
	r := ToRelative(extraction(map[string]llm.Value{
		"nome": str("PAOLA"), "cognome": str("GIALLI"),
		"intestatario": {Kind: llm.ValueObject, Fields: map[string]llm.Value{}},
	}))
	require.NotNil(t, r)
	assert.Equal(t, "PAOLA", r.FirstName)
}

func TestMapRecord(t *testing.T) {
	inv, _ := llm.Lookup(llm.SchemaInvoice)
	ex, err := llm.ParseWithSchema(`{"numeroFattura":"12/A","totale":1220.5,"dataFattura":"2024-04-01","fornitore":" Marmi Srl "}`, inv)
	require.NoError(t, err)

	rec := Map(ex, inv).(*entity.Record)
	assert.Equal(t, "fattura", rec.Schema)
	assert.Equal(t, map[string]string{
		"numeroFattura": "12/A",
		"totale":        "1220.5",
		"dataFattura":   "2024-04-01",
		"fornitore":     "Marmi Srl",
	}, rec.Fields)

	assert.Nil(t, Map(extraction(map[string]llm.Value{}), inv))
}
