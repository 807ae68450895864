// Package mapper turns a structured extraction into a typed domain record.
// Mapping never fails: missing identifying data yields no entity, bad values keep their zero value.
package mapper

import (
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/llm"
)

// dateLayouts are tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
}

const nestedHolder = "intestatario"

// Map maps ex onto the schema's target record.
func Map(ex llm.StructuredExtraction, schema llm.Schema) entity.Entity {
	return MapTo(ex, schema.Target, string(schema.Name))
}

// MapTo maps ex onto an explicit target; recordName labels Record results.
func MapTo(ex llm.StructuredExtraction, target entity.Kind, recordName string) entity.Entity {
	switch target {
	case entity.KindDeceased:
		if d := ToDeceased(ex); d != nil {
			return d
		}
	case entity.KindRelative:
		if r := ToRelative(ex); r != nil {
			return r
		}
	case entity.KindRecord:
		if r := ToRecord(ex, recordName); r != nil {
			return r
		}
	}
	return nil
}

func ToDeceased(ex llm.StructuredExtraction) *entity.Deceased {
	first, last := text(ex, "nome"), text(ex, "cognome")
	if first == "" || last == "" {
		return nil
	}
	return &entity.Deceased{
		FirstName:     first,
		LastName:      last,
		FiscalCode:    fiscalCode(text(ex, "codiceFiscale")),
		BirthDate:     date(ex, "dataNascita"),
		BirthPlace:    text(ex, "luogoNascita"),
		DeathDate:     date(ex, "dataDecesso"),
		DeathPlace:    text(ex, "luogoDecesso"),
		Sex:           sex(text(ex, "sesso")),
		MaritalStatus: text(ex, "statoCivile"),
		Address:       text(ex, "indirizzoResidenza"),
		City:          text(ex, "cittaResidenza"),
		FatherName:    text(ex, "paternita"),
		MotherName:    text(ex, "maternita"),
	}
}

// ToRelative reads the person from the nested holder object when present,
// otherwise from the top-level fields. Relationship and document data are top-level.
func ToRelative(ex llm.StructuredExtraction) *entity.Relative {
	person := ex
	if holder, ok := ex.Object(nestedHolder); ok {
		person = holder
	}
	first, last := text(person, "nome"), text(person, "cognome")
	if first == "" || last == "" {
		return nil
	}
	return &entity.Relative{
		FirstName:        first,
		LastName:         last,
		FiscalCode:       fiscalCode(text(person, "codiceFiscale")),
		BirthDate:        date(person, "dataNascita"),
		BirthPlace:       text(person, "luogoNascita"),
		Sex:              sex(text(person, "sesso")),
		Address:          text(person, "indirizzoResidenza"),
		City:             text(person, "cittaResidenza"),
		Phone:            text(person, "telefono"),
		Email:            strings.ToLower(text(person, "email")),
		Relationship:     text(ex, "parentela"),
		DocumentNumber:   text(ex, "numeroDocumento"),
		DocumentType:     strings.ToUpper(text(ex, "tipoDocumento")),
		DocumentIssuedAt: date(ex, "dataRilascio"),
		DocumentExpiry:   date(ex, "dataScadenza"),
		IssuingAuthority: text(ex, "enteRilascio"),
	}
}

// ToRecord flattens every field into a string bag; nested objects use dotted keys.
// It returns nil when nothing was extracted.
func ToRecord(ex llm.StructuredExtraction, name string) *entity.Record {
	fields := map[string]string{}
	flatten(ex.Fields, "", fields)
	if len(fields) == 0 {
		return nil
	}
	return &entity.Record{Schema: name, Fields: fields}
}

func flatten(in map[string]llm.Value, prefix string, out map[string]string) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := in[k]
		if v.Kind == llm.ValueObject {
			flatten(v.Fields, prefix+k+".", out)
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			out[prefix+k] = s
		}
	}
}

func text(ex llm.StructuredExtraction, name string) string {
	return strings.TrimSpace(ex.Text(name))
}

// date returns the zero time when the field is absent or matches no accepted layout.
func date(ex llm.StructuredExtraction, name string) time.Time {
	v, ok := ex.Fields[name]
	if !ok {
		return time.Time{}
	}
	if v.Kind == llm.ValueDate {
		return v.Date
	}
	return ParseDate(v.String())
}

// ParseDate tries ISO, dd/MM/yyyy, dd-MM-yyyy and dd.MM.yyyy in that order.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sex(s string) string {
	switch strings.ToUpper(s) {
	case "M", "F":
		return strings.ToUpper(s)
	}
	return ""
}

func fiscalCode(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
