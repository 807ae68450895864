package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

// SchemaName identifies a fixed extraction schema.
type SchemaName string

const (
	SchemaDeath     SchemaName = "decesso"
	SchemaIdentity  SchemaName = "documento_identita"
	SchemaGeneric   SchemaName = "generico"
	SchemaRelative  SchemaName = "familiare"
	SchemaInvoice   SchemaName = "fattura"
	SchemaTransport SchemaName = "trasporto"
)

// FieldKind is the expected value shape of a field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindDate   FieldKind = "date"
	KindEnum   FieldKind = "enum"
	KindNumber FieldKind = "number"
	KindObject FieldKind = "object"
)

// ConfidenceField is reserved in every schema for the model's self-reported confidence.
const ConfidenceField = "confidence"

type Field struct {
	Name        string
	Kind        FieldKind
	Required    bool
	Enum        []string
	Aliases     map[string]string // lower-case synonym -> enum value
	Fields      []Field           // KindObject only
	Description string
}

// Schema is static configuration: the ordered fields requested for a document type.
type Schema struct {
	Name        SchemaName
	Description string
	Target      entity.Kind
	Fields      []Field
}

// Field returns the declared field called name.
func (s Schema) Field(name string) (Field, bool) {
	return lookupField(s.Fields, name)
}

func lookupField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var sexField = Field{
	Name: "sesso", Kind: KindEnum, Enum: []string{"M", "F"},
	Aliases:     map[string]string{"maschio": "M", "maschile": "M", "femmina": "F", "femminile": "F"},
	Description: "sesso",
}

func personFields() []Field {
	return []Field{
		{Name: "nome", Kind: KindString, Description: "nome di battesimo"},
		{Name: "cognome", Kind: KindString, Description: "cognome"},
		{Name: "codiceFiscale", Kind: KindString, Description: "codice fiscale di 16 caratteri"},
		{Name: "dataNascita", Kind: KindDate, Description: "data di nascita"},
		{Name: "luogoNascita", Kind: KindString, Description: "comune di nascita"},
		sexField,
		{Name: "indirizzoResidenza", Kind: KindString, Description: "via e numero civico di residenza"},
		{Name: "cittaResidenza", Kind: KindString, Description: "comune di residenza"},
	}
}

var schemas = map[SchemaName]Schema{
	SchemaDeath: {
		Name:        SchemaDeath,
		Description: "dati del defunto da certificato o atto di morte",
		Target:      entity.KindDeceased,
		Fields: []Field{
			{Name: "nome", Kind: KindString, Required: true, Description: "nome del defunto"},
			{Name: "cognome", Kind: KindString, Required: true, Description: "cognome del defunto"},
			{Name: "codiceFiscale", Kind: KindString, Description: "codice fiscale di 16 caratteri"},
			{Name: "dataNascita", Kind: KindDate, Description: "data di nascita"},
			{Name: "luogoNascita", Kind: KindString, Description: "comune di nascita"},
			{Name: "dataDecesso", Kind: KindDate, Description: "data del decesso"},
			{Name: "luogoDecesso", Kind: KindString, Description: "comune o struttura del decesso"},
			sexField,
			{Name: "statoCivile", Kind: KindString, Description: "stato civile (celibe, nubile, coniugato, vedovo...)"},
			{Name: "indirizzoResidenza", Kind: KindString, Description: "via e numero civico di residenza"},
			{Name: "cittaResidenza", Kind: KindString, Description: "comune di residenza"},
			{Name: "paternita", Kind: KindString, Description: "nome del padre"},
			{Name: "maternita", Kind: KindString, Description: "nome della madre"},
		},
	},
	SchemaIdentity: {
		Name:        SchemaIdentity,
		Description: "dati anagrafici e del documento di identità",
		Target:      entity.KindRelative,
		Fields: append(personFields(),
			Field{Name: "numeroDocumento", Kind: KindString, Description: "numero del documento"},
			Field{
				Name: "tipoDocumento", Kind: KindEnum, Enum: []string{"CI", "CIE", "PP", "PAT"},
				Aliases: map[string]string{
					"carta d'identità": "CI", "carta di identità": "CI", "carta d'identita": "CI",
					"carta d'identità elettronica": "CIE", "carta di identità elettronica": "CIE",
					"passaporto": "PP", "patente": "PAT", "patente di guida": "PAT",
				},
				Description: "CI carta d'identità cartacea, CIE elettronica, PP passaporto, PAT patente",
			},
			Field{Name: "dataRilascio", Kind: KindDate, Description: "data di rilascio"},
			Field{Name: "dataScadenza", Kind: KindDate, Description: "data di scadenza"},
			Field{Name: "enteRilascio", Kind: KindString, Description: "ente o comune che ha rilasciato il documento"},
		),
	},
	SchemaGeneric: {
		Name:        SchemaGeneric,
		Description: "dati minimi della persona citata nel documento",
		Target:      entity.KindDeceased,
		Fields: []Field{
			{Name: "nome", Kind: KindString, Description: "nome"},
			{Name: "cognome", Kind: KindString, Description: "cognome"},
			{Name: "codiceFiscale", Kind: KindString, Description: "codice fiscale di 16 caratteri"},
		},
	},
	SchemaRelative: {
		Name:        SchemaRelative,
		Description: "familiare di riferimento del defunto (intestatario del servizio)",
		Target:      entity.KindRelative,
		Fields: append(personFields(),
			Field{Name: "telefono", Kind: KindString, Description: "numero di telefono"},
			Field{Name: "email", Kind: KindString, Description: "indirizzo email"},
			Field{Name: "parentela", Kind: KindString, Description: "rapporto di parentela con il defunto"},
			Field{
				Name: "intestatario", Kind: KindObject,
				Fields: append(personFields(),
					Field{Name: "telefono", Kind: KindString, Description: "numero di telefono"},
					Field{Name: "email", Kind: KindString, Description: "indirizzo email"},
				),
				Description: "persona intestataria, se indicata separatamente",
			},
		),
	},
	SchemaInvoice: {
		Name:        SchemaInvoice,
		Description: "dati di fattura o ricevuta",
		Target:      entity.KindRecord,
		Fields: []Field{
			{Name: "numeroFattura", Kind: KindString, Description: "numero del documento"},
			{Name: "dataFattura", Kind: KindDate, Description: "data di emissione"},
			{Name: "fornitore", Kind: KindString, Description: "ragione sociale dell'emittente"},
			{Name: "partitaIva", Kind: KindString, Description: "partita IVA dell'emittente"},
			{Name: "cliente", Kind: KindString, Description: "intestatario del documento"},
			{Name: "imponibile", Kind: KindNumber, Description: "imponibile in euro"},
			{Name: "iva", Kind: KindNumber, Description: "imposta in euro"},
			{Name: "totale", Kind: KindNumber, Description: "totale in euro"},
			{Name: "descrizione", Kind: KindString, Description: "descrizione sintetica delle voci"},
		},
	},
	SchemaTransport: {
		Name:        SchemaTransport,
		Description: "autorizzazione al trasporto della salma",
		Target:      entity.KindRecord,
		Fields: []Field{
			{Name: "numeroAutorizzazione", Kind: KindString, Description: "numero o protocollo dell'autorizzazione"},
			{Name: "dataAutorizzazione", Kind: KindDate, Description: "data di rilascio"},
			{Name: "comuneRilascio", Kind: KindString, Description: "comune che rilascia l'autorizzazione"},
			{Name: "defunto", Kind: KindString, Description: "nome e cognome del defunto"},
			{Name: "luogoPartenza", Kind: KindString, Description: "luogo di partenza"},
			{Name: "luogoDestinazione", Kind: KindString, Description: "luogo o cimitero di destinazione"},
			{Name: "dataTrasporto", Kind: KindDate, Description: "data del trasporto"},
			{Name: "vettore", Kind: KindString, Description: "impresa incaricata del trasporto"},
		},
	},
}

// Lookup returns the schema called name.
func Lookup(name SchemaName) (Schema, error) {
	s, ok := schemas[SchemaName(strings.ToLower(strings.TrimSpace(string(name))))]
	if !ok {
		return Schema{}, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// SchemaNames lists the known schemas in a stable order.
func SchemaNames() []SchemaName {
	return []SchemaName{SchemaDeath, SchemaIdentity, SchemaRelative, SchemaInvoice, SchemaTransport, SchemaGeneric}
}

// SchemaFor picks the schema used when the caller does not pin one.
func SchemaFor(dt constants.DocumentType) Schema {
	switch dt {
	case constants.DeathCertificate:
		return schemas[SchemaDeath]
	case constants.IdentityDocument:
		return schemas[SchemaIdentity]
	case constants.FamilyCertificate:
		return schemas[SchemaRelative]
	case constants.Invoice, constants.Receipt:
		return schemas[SchemaInvoice]
	case constants.TransportAuthorization:
		return schemas[SchemaTransport]
	default:
		return schemas[SchemaGeneric]
	}
}

// JSONSchema renders s as a JSON-Schema (draft 2020-12 subset) used to gate model output.
// Dates are plain strings here; their format is checked during decoding.
func (s Schema) JSONSchema() map[string]any {
	props := fieldProps(s.Fields)
	props[ConfidenceField] = map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func fieldProps(fields []Field) map[string]any {
	props := make(map[string]any, len(fields)+1)
	for _, f := range fields {
		switch f.Kind {
		case KindNumber:
			props[f.Name] = map[string]any{"type": "number"}
		case KindEnum:
			props[f.Name] = map[string]any{"type": "string", "enum": f.Enum}
		case KindObject:
			props[f.Name] = map[string]any{"type": "object", "properties": fieldProps(f.Fields)}
		default:
			props[f.Name] = map[string]any{"type": "string"}
		}
	}
	return props
}
