package domain

import "strings"

// DocumentCategory identifies the information return a document was read from.
type DocumentCategory string

const (
	DocumentW2       DocumentCategory = "W2"
	Document1099INT  DocumentCategory = "1099INT"
	Document1099NEC  DocumentCategory = "1099NEC"
	Document1099DIV  DocumentCategory = "1099DIV"
	Document1099G    DocumentCategory = "1099G"
	Document1099MISC DocumentCategory = "1099MISC"
	Document1099B    DocumentCategory = "1099B"
	Document1099R    DocumentCategory = "1099R"
	Document1098T    DocumentCategory = "1098T"
	Document1042S    DocumentCategory = "1042S"
)

var knownDocumentCategories = map[DocumentCategory]bool{
	DocumentW2: true, Document1099INT: true, Document1099NEC: true, Document1099DIV: true,
	Document1099G: true, Document1099MISC: true, Document1099B: true, Document1099R: true,
	Document1098T: true, Document1042S: true,
}

// ParseDocumentCategory accepts spellings such as "W-2", "1099-INT" or "1042 S".
func ParseDocumentCategory(s string) (DocumentCategory, bool) {
	code := NormalizeCode(s)
	code = strings.NewReplacer("-", "", ".", "").Replace(code)
	c := DocumentCategory(code)
	return c, knownDocumentCategories[c]
}

// Document is one normalized information return: its category plus the raw
// extracted field values keyed by field name.
type Document struct {
	ID       string            `yaml:"id,omitempty" json:"id,omitempty"`
	Category DocumentCategory  `yaml:"category" json:"category"`
	Fields   map[string]string `yaml:"fields" json:"fields"`

	// PayerCountry is the payor's country code; empty means a U.S. payor.
	PayerCountry string `yaml:"payer_country,omitempty" json:"payer_country,omitempty"`
}

// Field returns the first non-empty value among names.
func (d Document) Field(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := d.Fields[n]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// USPayor reports whether the document was issued by a U.S. payor.
func (d Document) USPayor() bool {
	c := NormalizeCode(d.PayerCountry)
	return c == "" || c == "US" || c == "USA"
}
