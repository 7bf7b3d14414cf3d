package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"smartrab/internal"
	"smartrab/internal/util"
)

// Vocabulary is the static knowledge the heuristics run on: header aliases,
// header keywords, unit tokens and the header sentinels rejected by the row
// extractor.
type Vocabulary struct {
	Aliases        map[string]string `yaml:"aliases"`
	HeaderKeywords []string          `yaml:"header_keywords"`
	Units          []string          `yaml:"units"`
	Sentinels      []string          `yaml:"sentinels"`

	units map[string]struct{}
}

var canonicalFields = []string{
	internal.FieldDescription,
	internal.FieldUnit,
	internal.FieldCoefficient,
	internal.FieldUnitPrice,
	internal.FieldTotalPrice,
	internal.FieldSourceFile,
}

var defaultAliases = map[string][]string{
	internal.FieldDescription: {
		"uraian", "uraian pekerjaan", "uraian kegiatan", "uraian bahan", "item", "item pekerjaan",
		"jenis pekerjaan", "nama pekerjaan", "deskripsi", "nama", "nama bahan", "nama material",
		"nama barang", "material", "bahan",
	},
	internal.FieldUnit: {
		"sat", "sat.", "satuan", "unit", "sat. ukuran",
	},
	internal.FieldCoefficient: {
		"koefisien", "koef", "koef.", "indeks", "index", "koefisien (k)",
	},
	internal.FieldUnitPrice: {
		"harga satuan", "harga satuan (rp)", "harga satuan (rp.)", "harga satuan rp", "harga",
		"harga (rp)", "harga dasar", "harga dasar (rp)", "harga satuan bahan", "harga satuan upah",
	},
	internal.FieldTotalPrice: {
		"jumlah harga", "jumlah harga (rp)", "jumlah harga (rp.)", "jumlah", "jumlah (rp)",
		"total", "total harga", "total harga (rp)",
	},
}

func DefaultVocabulary() Vocabulary {
	v := Vocabulary{
		Aliases:        map[string]string{},
		HeaderKeywords: []string{"uraian", "item", "satuan", "koefisien", "harga satuan", "kode", "komponen"},
		Units:          []string{"m3", "m2", "m'", "kg", "bh", "ls", "zak", "btg", "titik"},
		Sentinels:      []string{"Uraian", "Satuan", "Harga"},
	}
	for canonical, variants := range defaultAliases {
		for _, variant := range variants {
			v.Aliases[variant] = canonical
		}
	}
	for _, f := range canonicalFields {
		v.Aliases[f] = f
	}
	v.index()
	return v
}

// LoadVocabulary merges a YAML file over the defaults. An empty path returns
// the defaults unchanged.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if strings.TrimSpace(path) == "" {
		return v, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	var file Vocabulary
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	for variant, canonical := range file.Aliases {
		key := util.NormalizeHeader(variant)
		target := util.NormalizeHeader(canonical)
		if key == "" || target == "" {
			continue
		}
		v.Aliases[key] = target
	}
	// every alias target must map to itself, otherwise renaming twice would move a column again
	for _, target := range v.Aliases {
		if mapped, ok := v.Aliases[target]; ok && mapped != target {
			return Vocabulary{}, fmt.Errorf("vocabulary %s: alias target %q is itself an alias of %q", path, target, mapped)
		}
	}
	for _, target := range v.Aliases {
		v.Aliases[target] = target
	}

	if len(file.HeaderKeywords) > 0 {
		v.HeaderKeywords = file.HeaderKeywords
	}
	v.Units = append(v.Units, file.Units...)
	if len(file.Sentinels) > 0 {
		v.Sentinels = file.Sentinels
	}
	v.index()
	return v, nil
}

func (v *Vocabulary) index() {
	v.units = make(map[string]struct{}, len(v.Units))
	for _, u := range v.Units {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			v.units[u] = struct{}{}
		}
	}
}

// Canonical renames one header. Unknown headers come back normalized but
// otherwise unchanged.
func (v Vocabulary) Canonical(header string) string {
	norm := util.NormalizeHeader(header)
	if mapped, ok := v.Aliases[norm]; ok {
		return mapped
	}
	return norm
}

// UnitToken returns the vocabulary form of token when it is a known unit.
// Single quotes are tried both ways since "m'" is itself a unit.
func (v Vocabulary) UnitToken(token string) (string, bool) {
	units := v.units
	if units == nil {
		v.index()
		units = v.units
	}
	for _, candidate := range []string{
		strings.Trim(strings.TrimSpace(token), `"“”`),
		util.TrimQuotes(token),
	} {
		norm := strings.ToLower(strings.TrimSpace(candidate))
		if norm == "" {
			continue
		}
		if _, ok := units[norm]; ok {
			return norm, true
		}
	}
	return "", false
}
