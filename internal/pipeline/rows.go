package pipeline

import (
	"encoding/csv"
	"regexp"
	"strings"
	"unicode/utf8"

	"smartrab/internal"
	"smartrab/internal/util"
)

const (
	DefaultPriceThreshold    = 100.0
	DefaultMinDescriptionLen = 5
	DefaultItemUnit          = "ls"
	minItemFields            = 4
)

var reItemCode = regexp.MustCompile(`^[A-Za-z0-9]+(\.[0-9]+)*\.?$`)

type ItemOptions struct {
	Vocabulary        Vocabulary
	PriceThreshold    float64
	MinDescriptionLen int
	DefaultUnit       string
}

func DefaultItemOptions(v Vocabulary) ItemOptions {
	return ItemOptions{
		Vocabulary:        v,
		PriceThreshold:    DefaultPriceThreshold,
		MinDescriptionLen: DefaultMinDescriptionLen,
		DefaultUnit:       DefaultItemUnit,
	}
}

func (o ItemOptions) withDefaults() ItemOptions {
	if o.PriceThreshold <= 0 {
		o.PriceThreshold = DefaultPriceThreshold
	}
	if o.MinDescriptionLen <= 0 {
		o.MinDescriptionLen = DefaultMinDescriptionLen
	}
	if o.DefaultUnit == "" {
		o.DefaultUnit = DefaultItemUnit
	}
	return o
}

// Stage names, reported by ClassifyLine for the line it rejected.
const (
	StageFields      = "fields"
	StageSentinel    = "sentinel"
	StageCode        = "code"
	StagePrice       = "price"
	StageDescription = "description"
)

type lineCandidate struct {
	fields []string
	item   internal.PricedItem
}

type lineStage struct {
	name string
	keep func(c *lineCandidate, opts ItemOptions) bool
}

// itemStages run in order and stop at the first rejection. The unit lookup
// never rejects, so it is applied after the chain.
var itemStages = []lineStage{
	{StageFields, func(c *lineCandidate, _ ItemOptions) bool { return len(c.fields) >= minItemFields }},
	{StageSentinel, func(c *lineCandidate, opts ItemOptions) bool {
		return !HasSentinel(c.fields[1], opts.Vocabulary.Sentinels)
	}},
	{StageCode, func(c *lineCandidate, _ ItemOptions) bool {
		c.item.Code = util.TrimQuotes(c.fields[0])
		return IsItemCode(c.item.Code)
	}},
	{StagePrice, func(c *lineCandidate, opts ItemOptions) bool {
		price, ok := ExtractPrice(c.fields, opts.PriceThreshold)
		c.item.Price = price
		return ok && price > 0
	}},
	{StageDescription, func(c *lineCandidate, opts ItemOptions) bool {
		c.item.Description = util.TrimQuotes(c.fields[1])
		return utf8.RuneCountInString(c.item.Description) > opts.MinDescriptionLen
	}},
}

// SplitFields splits one line, honouring quotes. Lines the csv reader cannot
// make sense of are split on the bare delimiter instead.
func SplitFields(line string, delimiter rune) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		fields = strings.Split(line, string(delimiter))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(fields[i]), `"`))
	}
	return fields
}

func HasSentinel(text string, sentinels []string) bool {
	for _, s := range sentinels {
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// IsItemCode accepts hierarchical work-item numbers such as "2.1", "3.4.1.1"
// or "A.1". Pure words ("No", "Kode") and roman numerals are section labels.
func IsItemCode(token string) bool {
	token = util.TrimQuotes(token)
	if !reItemCode.MatchString(token) {
		return false
	}
	return strings.ContainsAny(token, "0123456789")
}

// ExtractPrice scans from the last field backwards and takes the first value
// above threshold. Coefficients and counts sit below it.
func ExtractPrice(fields []string, threshold float64) (float64, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		if v := util.CleanCurrency(fields[i]); v > threshold {
			return v, true
		}
	}
	return 0, false
}

func ExtractUnit(fields []string, vocab Vocabulary, fallback string) string {
	for _, f := range fields {
		if unit, ok := vocab.UnitToken(f); ok {
			return unit
		}
	}
	return fallback
}

// ClassifyLine returns the priced item carried by fields, or the name of the
// stage that rejected the line.
func ClassifyLine(fields []string, opts ItemOptions) (internal.PricedItem, string) {
	opts = opts.withDefaults()
	c := &lineCandidate{fields: fields}
	for _, stage := range itemStages {
		if !stage.keep(c, opts) {
			return internal.PricedItem{}, stage.name
		}
	}
	c.item.Unit = ExtractUnit(fields, opts.Vocabulary, opts.DefaultUnit)
	return c.item, ""
}

type ItemReport struct {
	Items    []internal.PricedItem
	Rejected map[string]int
}

// ExtractItems classifies every non-empty line of rec and keeps the priced
// work items in file order.
func ExtractItems(rec internal.RawRecord, opts ItemOptions) ItemReport {
	report := ItemReport{Rejected: map[string]int{}}
	opts = opts.withDefaults()
	for i, line := range rec.Lines {
		fields := SplitFields(line, rec.Delimiter)
		if fields == nil {
			continue
		}
		item, rejected := ClassifyLine(fields, opts)
		if rejected != "" {
			report.Rejected[rejected]++
			continue
		}
		item.LineNo = i + 1
		item.SourceFile = rec.Name
		report.Items = append(report.Items, item)
	}
	return report
}
