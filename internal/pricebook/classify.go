package pricebook

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Division string   `yaml:"division"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type classifierFile struct {
	Rules   []Rule `yaml:"rules"`
	Default struct {
		Division string `yaml:"division"`
		Category string `yaml:"category"`
	} `yaml:"default"`
}

// KeywordClassifier labels a file by the first rule whose keyword occurs in
// its name.
type KeywordClassifier struct {
	rules    []Rule
	division string
	category string
}

func DefaultRules() []Rule {
	return []Rule{
		{Division: "Persiapan", Category: "Pekerjaan Tanah", Keywords: []string{"galian", "urugan", "tanah"}},
		{Division: "Struktur", Category: "Beton", Keywords: []string{"beton", "bekisting"}},
		{Division: "Struktur", Category: "Besi & Baja", Keywords: []string{"pembesian", "besi", "baja"}},
		{Division: "Arsitektur", Category: "Pasangan & Plesteran", Keywords: []string{"pasangan", "plester", "dinding", "bata"}},
		{Division: "Arsitektur", Category: "Lantai", Keywords: []string{"lantai", "keramik"}},
		{Division: "Arsitektur", Category: "Atap", Keywords: []string{"atap", "genteng"}},
		{Division: "Arsitektur", Category: "Pengecatan", Keywords: []string{"pengecatan", "cat "}},
		{Division: "Arsitektur", Category: "Kayu", Keywords: []string{"kayu", "kusen"}},
		{Division: "MEP", Category: "Listrik", Keywords: []string{"listrik", "elektrikal"}},
		{Division: "MEP", Category: "Plumbing", Keywords: []string{"plumbing", "sanitair", "pipa"}},
		{Division: "Sumber Daya", Category: "Upah", Keywords: []string{"upah", "tenaga"}},
		{Division: "Sumber Daya", Category: "Alat", Keywords: []string{"alat"}},
		{Division: "Sumber Daya", Category: "Bahan", Keywords: []string{"bahan", "material"}},
	}
}

func NewKeywordClassifier(rules []Rule) *KeywordClassifier {
	c := &KeywordClassifier{division: DefaultDivision, category: DefaultCategory}
	for _, r := range rules {
		if strings.TrimSpace(r.Category) == "" {
			continue
		}
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(k); strings.TrimSpace(k) != "" {
				kw = append(kw, k)
			}
		}
		if r.Division == "" {
			r.Division = DefaultDivision
		}
		r.Keywords = kw
		c.rules = append(c.rules, r)
	}
	return c
}

// LoadClassifier reads rules from YAML. Rules in the file replace the
// defaults; an empty path returns the default rules.
func LoadClassifier(filePath string) (*KeywordClassifier, error) {
	if strings.TrimSpace(filePath) == "" {
		return NewKeywordClassifier(DefaultRules()), nil
	}
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read classifier rules: %w", err)
	}
	var file classifierFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse classifier rules %s: %w", filePath, err)
	}

	rules := file.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c := NewKeywordClassifier(rules)
	if file.Default.Division != "" {
		c.division = file.Default.Division
	}
	if file.Default.Category != "" {
		c.category = file.Default.Category
	}
	return c, nil
}

func (c *KeywordClassifier) Classify(fileName string) (string, string) {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ", "[", " ", "]", " ").Replace(strings.ToLower(name))
	name = " " + name + " "
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(name, k) {
				return r.Division, r.Category
			}
		}
	}
	return c.division, c.category
}
