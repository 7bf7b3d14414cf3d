package pricebook

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"smartrab/internal"
	"smartrab/internal/util"
)

const (
	DefaultDivision = "Umum"
	DefaultCategory = "Umum"
	pricePlaces     = 2
)

// EntryID is the short stable id of a description: the first 8 hex digits of
// the md5 of its lower-cased, trimmed text.
func EntryID(description string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(description))))
	return hex.EncodeToString(sum[:])[:8]
}

// EntryKey is the merge key inside one category.
func EntryKey(description string) string {
	return util.NormalizeDescription(description)
}

type entry struct {
	internal.PriceEntry
	sum decimal.Decimal
}

// Book is the master price list. Observations with the same category and
// normalized description fold into one entry whose price is the average of
// the non-zero observed prices.
type Book struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Book {
	return &Book{entries: map[string]*entry{}}
}

type observation struct {
	category    string
	division    string
	code        string
	description string
	unit        string
	price       float64
	source      string
}

func (b *Book) AddRows(rows []internal.CanonicalRow) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range rows {
		if b.add(observation{
			category:    r.Category,
			division:    r.Division,
			description: r.Description,
			unit:        r.Unit,
			price:       r.UnitPrice,
			source:      r.SourceFile,
		}) {
			n++
		}
	}
	return n
}

func (b *Book) AddItems(items []internal.PricedItem) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, it := range items {
		if b.add(observation{
			category:    it.Category,
			division:    it.Division,
			code:        it.Code,
			description: it.Description,
			unit:        it.Unit,
			price:       it.Price,
			source:      it.SourceFile,
		}) {
			n++
		}
	}
	return n
}

// AddBatch merges every accepted row and item of a batch and returns how many
// observations were taken.
func (b *Book) AddBatch(batch internal.BatchResult) int {
	return b.AddRows(batch.Rows()) + b.AddItems(batch.Items())
}

func (b *Book) add(o observation) bool {
	key := EntryKey(o.description)
	if key == "" {
		return false
	}
	category := strings.TrimSpace(o.category)
	if category == "" {
		category = DefaultCategory
	}
	division := strings.TrimSpace(o.division)
	if division == "" {
		division = DefaultDivision
	}

	mapKey := category + "\x00" + key
	e, ok := b.entries[mapKey]
	if !ok {
		description := util.NormalizeSpaces(o.description)
		e = &entry{
			PriceEntry: internal.PriceEntry{
				ID:          EntryID(description),
				Key:         key,
				Category:    category,
				Division:    division,
				Description: description,
			},
			sum: decimal.Zero,
		}
		b.entries[mapKey] = e
	}

	e.Samples++
	if e.Code == "" {
		e.Code = strings.TrimSpace(o.code)
	}
	if unit := strings.TrimSpace(o.unit); unit != "" && (e.Unit == "" || e.Unit == "-") {
		e.Unit = unit
	}
	if o.source != "" && !containsString(e.Sources, o.source) {
		e.Sources = append(e.Sources, o.source)
	}
	if o.price > 0 {
		e.sum = e.sum.Add(decimal.NewFromFloat(o.price))
		e.Priced++
		e.Price = e.sum.Div(decimal.NewFromInt(int64(e.Priced))).Round(pricePlaces).InexactFloat64()
	}
	return true
}

// Load restores entries persisted earlier so new observations keep averaging
// against them.
func (b *Book) Load(entries []internal.PriceEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, pe := range entries {
		if pe.Key == "" {
			pe.Key = EntryKey(pe.Description)
		}
		if pe.Key == "" {
			continue
		}
		if pe.ID == "" {
			pe.ID = EntryID(pe.Description)
		}
		if pe.Category == "" {
			pe.Category = DefaultCategory
		}
		sum := decimal.NewFromFloat(pe.Price).Mul(decimal.NewFromInt(int64(pe.Priced)))
		b.entries[pe.Category+"\x00"+pe.Key] = &entry{PriceEntry: pe, sum: sum}
	}
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Entries returns a snapshot sorted by category then description.
func (b *Book) Entries() []internal.PriceEntry {
	b.mu.RLock()
	out := make([]internal.PriceEntry, 0, len(b.entries))
	for _, e := range b.entries {
		pe := e.PriceEntry
		pe.Sources = append([]string(nil), e.Sources...)
		out = append(out, pe)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Category returns the entries of one category, or all entries for "".
func (b *Book) Category(category string) []internal.PriceEntry {
	all := b.Entries()
	if category == "" {
		return all
	}
	out := all[:0]
	for _, e := range all {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	return out
}

// Summarize computes the per-category breakdown. Min, Max and Average only
// consider entries that carry a price.
func Summarize(entries []internal.PriceEntry) []internal.CategorySummary {
	byCategory := map[string]*internal.CategorySummary{}
	sums := map[string]decimal.Decimal{}
	var order []string
	for _, e := range entries {
		s, ok := byCategory[e.Category]
		if !ok {
			s = &internal.CategorySummary{Category: e.Category}
			byCategory[e.Category] = s
			sums[e.Category] = decimal.Zero
			order = append(order, e.Category)
		}
		s.Count++
		if e.Price <= 0 {
			continue
		}
		if s.Priced == 0 || e.Price < s.Min {
			s.Min = e.Price
		}
		if e.Price > s.Max {
			s.Max = e.Price
		}
		s.Priced++
		sums[e.Category] = sums[e.Category].Add(decimal.NewFromFloat(e.Price))
	}

	sort.Strings(order)
	out := make([]internal.CategorySummary, 0, len(order))
	for _, c := range order {
		s := byCategory[c]
		if s.Priced > 0 {
			s.Average = sums[c].Div(decimal.NewFromInt(int64(s.Priced))).Round(pricePlaces).InexactFloat64()
		}
		out = append(out, *s)
	}
	return out
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
