package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"smartrab/internal"
	"smartrab/internal/util"
)

const unnamedPrefix = "unnamed"

type SchemaOptions struct {
	Vocabulary      Vocabulary
	UnitPlaceholder string
}

type SchemaResult struct {
	// Columns holds the kept columns in file order, after renaming.
	Columns    []string
	Rows       []internal.CanonicalRow
	Skipped    int
	Diagnostic string
}

func (r SchemaResult) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MapColumns renames raw headers to canonical names. Blank headers become
// "unnamed: <i>" artifacts; a repeated name keeps its first position and
// later copies get a ".<n>" suffix.
func MapColumns(headers []string, vocab Vocabulary) []string {
	out := make([]string, len(headers))
	seen := map[string]int{}
	for i, h := range headers {
		name := vocab.Canonical(h)
		if name == "" {
			name = fmt.Sprintf("%s: %d", unnamedPrefix, i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func isUnnamed(column string) bool {
	return strings.HasPrefix(column, unnamedPrefix)
}

// NormalizeSchema reads the table that starts at headerRow. Rows whose field
// count differs from the header are skipped; any other read failure leaves the
// rows collected so far out and returns an empty result.
func NormalizeSchema(rec internal.RawRecord, headerRow int, opts SchemaOptions) SchemaResult {
	if headerRow < 0 || headerRow >= len(rec.Lines) {
		return SchemaResult{Diagnostic: "no header row"}
	}
	if opts.UnitPlaceholder == "" {
		opts.UnitPlaceholder = "-"
	}

	r := csv.NewReader(strings.NewReader(strings.Join(rec.Lines[headerRow:], "\n")))
	r.Comma = rec.Delimiter
	if r.Comma == 0 {
		r.Comma = DefaultDelimiter
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return SchemaResult{Diagnostic: fmt.Sprintf("read header: %v", err)}
	}

	mapped := MapColumns(header, opts.Vocabulary)
	keep := make([]int, 0, len(mapped))
	var res SchemaResult
	for i, name := range mapped {
		if isUnnamed(name) {
			continue
		}
		keep = append(keep, i)
		res.Columns = append(res.Columns, name)
	}

	descIdx := indexOf(mapped, internal.FieldDescription)
	if descIdx < 0 {
		res.Diagnostic = fmt.Sprintf("no %s column; found: %s", internal.FieldDescription, strings.Join(res.Columns, ", "))
		return res
	}

	unitIdx := indexOf(mapped, internal.FieldUnit)
	priceIdx := indexOf(mapped, internal.FieldUnitPrice)
	coefIdx := indexOf(mapped, internal.FieldCoefficient)
	totalIdx := indexOf(mapped, internal.FieldTotalPrice)

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Skipped++
			continue
		}
		if err != nil {
			return SchemaResult{Columns: res.Columns, Diagnostic: fmt.Sprintf("read rows: %v", err)}
		}
		line, _ := r.FieldPos(0)
		lineNo := headerRow + line

		desc := strings.TrimSpace(field(record, descIdx))
		if desc == "" {
			continue
		}

		row := internal.CanonicalRow{
			LineNo:      lineNo,
			Description: desc,
			Unit:        strings.TrimSpace(field(record, unitIdx)),
			SourceFile:  rec.Name,
		}
		if row.Unit == "" {
			row.Unit = opts.UnitPlaceholder
		}

		price := util.ParseNumberString(field(record, priceIdx))
		row.UnitPrice, row.PriceState = price.Value, price.State
		if row.UnitPrice < 0 {
			row.UnitPrice, row.PriceState = 0, util.NumberInvalid
		}
		if coefIdx >= 0 {
			row.Coefficient = util.FloatPtr(util.CleanCurrency(field(record, coefIdx)))
		}
		if totalIdx >= 0 {
			row.TotalPrice = util.FloatPtr(util.CleanCurrency(field(record, totalIdx)))
		}

		for _, i := range keep {
			switch i {
			case descIdx, unitIdx, priceIdx, coefIdx, totalIdx:
				continue
			}
			if row.Extra == nil {
				row.Extra = map[string]string{}
			}
			row.Extra[mapped[i]] = strings.TrimSpace(field(record, i))
		}

		res.Rows = append(res.Rows, row)
	}

	return res
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
