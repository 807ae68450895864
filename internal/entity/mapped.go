package entity

import "time"

// Kind names the domain record variant a mapping produces.
type Kind string

const (
	KindDeceased Kind = "deceased"
	KindRelative Kind = "relative"
	KindRecord   Kind = "record"
)

// Entity is implemented by every mapped domain record.
type Entity interface {
	Kind() Kind
}

// Deceased is the deceased-person record. Zero values mean "not extracted".
type Deceased struct {
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	FiscalCode    string    `json:"fiscal_code,omitempty"`
	BirthDate     time.Time `json:"birth_date,omitzero"`
	BirthPlace    string    `json:"birth_place,omitempty"`
	DeathDate     time.Time `json:"death_date,omitzero"`
	DeathPlace    string    `json:"death_place,omitempty"`
	Sex           string    `json:"sex,omitempty"` // "M" | "F"
	MaritalStatus string    `json:"marital_status,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	FatherName    string    `json:"father_name,omitempty"`
	MotherName    string    `json:"mother_name,omitempty"`
}

func (*Deceased) Kind() Kind { return KindDeceased }

// Relative is the responsible-relative record, usually the person signing for the family.
type Relative struct {
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	FiscalCode       string    `json:"fiscal_code,omitempty"`
	BirthDate        time.Time `json:"birth_date,omitzero"`
	BirthPlace       string    `json:"birth_place,omitempty"`
	Sex              string    `json:"sex,omitempty"`
	Address          string    `json:"address,omitempty"`
	City             string    `json:"city,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Email            string    `json:"email,omitempty"`
	Relationship     string    `json:"relationship,omitempty"`
	DocumentNumber   string    `json:"document_number,omitempty"`
	DocumentType     string    `json:"document_type,omitempty"` // CI | CIE | PP | PAT
	DocumentIssuedAt time.Time `json:"document_issued_at,omitzero"`
	DocumentExpiry   time.Time `json:"document_expiry,omitzero"`
	IssuingAuthority string    `json:"issuing_authority,omitempty"`
}

func (*Relative) Kind() Kind { return KindRelative }

// Record is the generic key-value bag used for invoices, transport data and the like.
type Record struct {
	Schema string            `json:"schema"`
	Fields map[string]string `json:"fields"`
}

func (*Record) Kind() Kind { return KindRecord }
