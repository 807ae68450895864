package llm

import (
	"fmt"
	"strings"
)

// Build composes the full prompt for schema: instruction block, field list, then text verbatim.
func Build(schema Schema, text string) string {
	var b strings.Builder

	b.WriteString("You are an assistant for an Italian funeral services back office. ")
	b.WriteString("You read administrative documents (certificates, identity documents, invoices, permits) and extract data from them.\n\n")

	b.WriteString("Output rules:\n")
	b.WriteString("- Respond with ONE JSON object and nothing else. No prose, no markdown, no code fences.\n")
	b.WriteString("- Use exactly the field names listed below; do not add other fields.\n")
	b.WriteString("- Use null for any field that does not appear in the document. Never invent values.\n")
	b.WriteString("- Write dates as YYYY-MM-DD.\n")
	b.WriteString(`- If you are not confident about a value, write it as {"value": <value>, "uncertain": true}.` + "\n")
	b.WriteString(`- Add a "confidence" field: a number between 0 and 1 for the extraction as a whole.` + "\n\n")

	fmt.Fprintf(&b, "Schema %q: %s.\n", schema.Name, schema.Description)
	b.WriteString("Fields:\n")
	writeFields(&b, schema.Fields, "")
	fmt.Fprintf(&b, "- %s (number 0..1, required)\n\n", ConfidenceField)

	b.WriteString("Document text:\n<<<\n")
	b.WriteString(text)
	b.WriteString("\n>>>\n")
	return b.String()
}

func writeFields(b *strings.Builder, fields []Field, indent string) {
	for _, f := range fields {
		fmt.Fprintf(b, "%s- %s (%s", indent, f.Name, fieldShape(f))
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if f.Description != "" {
			b.WriteString(": ")
			b.WriteString(f.Description)
		}
		b.WriteString("\n")
		if f.Kind == KindObject {
			writeFields(b, f.Fields, indent+"  ")
		}
	}
}

func fieldShape(f Field) string {
	switch f.Kind {
	case KindDate:
		return "date YYYY-MM-DD"
	case KindEnum:
		return "one of " + strings.Join(f.Enum, "/")
	case KindObject:
		return "object with fields"
	default:
		return string(f.Kind)
	}
}
