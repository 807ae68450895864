package constants

import (
	"strings"
)

// DocumentType is the closed set of labels the classifier can assign.
type DocumentType string

const (
	DeathCertificate       DocumentType = "death-certificate"
	TransportAuthorization DocumentType = "transport-authorization"
	ParishNotice           DocumentType = "parish-notice"
	Checklist              DocumentType = "checklist"
	Invoice                DocumentType = "invoice"
	Receipt                DocumentType = "receipt"
	Contract               DocumentType = "contract"
	IdentityDocument       DocumentType = "identity-document"
	FamilyCertificate      DocumentType = "family-certificate"
	Other                  DocumentType = "other"
)

// allDocumentTypes is also the tie-break order of the classifier.
var allDocumentTypes = []DocumentType{
	DeathCertificate,
	TransportAuthorization,
	ParishNotice,
	Checklist,
	Invoice,
	Receipt,
	Contract,
	IdentityDocument,
	FamilyCertificate,
	Other,
}

// DocumentTypes returns every label in tie-break order.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allDocumentTypes))
	for i, t := range allDocumentTypes {
		result[i] = string(t)
	}
	return result
}

// Canonicalize maps free-form labels (CLI flags, rule files) onto a DocumentType.
func Canonicalize(input string) (DocumentType, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("_", "-", " ", "-").Replace(normalized)

	synonyms := map[string]DocumentType{
		"certificato-morte":  DeathCertificate,
		"decesso":            DeathCertificate,
		"trasporto":          TransportAuthorization,
		"autorizzazione":     TransportAuthorization,
		"avviso-parrocchia":  ParishNotice,
		"parrocchia":         ParishNotice,
		"fattura":            Invoice,
		"ricevuta":           Receipt,
		"contratto":          Contract,
		"documento-identita": IdentityDocument,
		"carta-identita":     IdentityDocument,
		"stato-famiglia":     FamilyCertificate,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allDocumentTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return Other, false
}
