package internal

import "smartrab/internal/util"

// Canonical field names produced by the schema normalizer.
const (
	FieldDescription = "description"
	FieldUnit        = "unit"
	FieldCoefficient = "coefficient"
	FieldUnitPrice   = "unit_price"
	FieldTotalPrice  = "total_price"
	FieldSourceFile  = "source_file"
)

// Keys of a priced item mapping.
const (
	FieldCode            = "code"
	FieldItemDescription = "item_description"
	FieldPrice           = "price"
)

type IngestMode string

const (
	ModeTable IngestMode = "table"
	ModeItems IngestMode = "items"
	ModeAuto  IngestMode = "auto"
)

type SourceKind string

const (
	SourceText SourceKind = "text"
	SourceXLSX SourceKind = "xlsx"
	SourceHTML SourceKind = "html"
	SourcePDF  SourceKind = "pdf"
)

// RawRecord is one decoded source file. It lives only for the duration of a
// single file's ingestion.
type RawRecord struct {
	Name      string
	Kind      SourceKind
	Content   []byte
	Encoding  string
	Delimiter rune
	Lines     []string
}

type CanonicalRow struct {
	LineNo      int
	Description string
	Unit        string
	UnitPrice   float64
	PriceState  util.NumberState
	Coefficient *float64
	TotalPrice  *float64
	SourceFile  string
	Category    string
	Division    string
	Extra       map[string]string
}

func (r CanonicalRow) Map() map[string]any {
	out := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[FieldDescription] = r.Description
	out[FieldUnit] = r.Unit
	out[FieldUnitPrice] = r.UnitPrice
	out[FieldSourceFile] = r.SourceFile
	if r.Coefficient != nil {
		out[FieldCoefficient] = *r.Coefficient
	}
	if r.TotalPrice != nil {
		out[FieldTotalPrice] = *r.TotalPrice
	}
	return out
}

type PricedItem struct {
	LineNo      int
	Code        string
	Description string
	Unit        string
	Price       float64
	SourceFile  string
	Category    string
	Division    string
}

func (p PricedItem) Map() map[string]any {
	return map[string]any{
		FieldCode:            p.Code,
		FieldItemDescription: p.Description,
		FieldUnit:            p.Unit,
		FieldPrice:           p.Price,
	}
}

// FileResult is everything one file contributes to a batch. Rows and Items are
// empty whenever Err is set.
type FileResult struct {
	File       string
	Hash       string
	Kind       SourceKind
	Encoding   string
	Delimiter  rune
	HeaderRow  int
	Mode       IngestMode
	Columns    []string
	Division   string
	Category   string
	Diagnostic string
	Rows       []CanonicalRow
	Items      []PricedItem
	Err        error
}

func (r FileResult) Accepted() int {
	return len(r.Rows) + len(r.Items)
}

type BatchResult struct {
	RunID string
	Files []FileResult
}

func (b BatchResult) Rows() []CanonicalRow {
	var out []CanonicalRow
	for _, f := range b.Files {
		out = append(out, f.Rows...)
	}
	return out
}

func (b BatchResult) Items() []PricedItem {
	var out []PricedItem
	for _, f := range b.Files {
		out = append(out, f.Items...)
	}
	return out
}

func (b BatchResult) Failed() int {
	n := 0
	for _, f := range b.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// PriceEntry is one line of the master price list: every observation of the
// same (category, description) folded into an averaged price.
type PriceEntry struct {
	ID          string
	Key         string
	Category    string
	Division    string
	Code        string
	Description string
	Unit        string
	Price       float64
	Samples     int
	Priced      int
	Sources     []string
}

type CategorySummary struct {
	Category string
	Count    int
	Priced   int
	Min      float64
	Max      float64
	Average  float64
}
