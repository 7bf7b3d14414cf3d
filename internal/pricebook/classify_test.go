package pricebook

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeywordClassifierDefaults(t *testing.T) {
	c, err := LoadClassifier("")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name     string
		division string
		category string
	}{
		{"AHSP_Beton_K225.xlsx", "Struktur", "Beton"},
		{"data/Upah Bahan.csv", "Sumber Daya", "Upah"},
		{"penawaran.eml/harga-cat.csv", "Arsitektur", "Pengecatan"},
		{`C:\rab\PEKERJAAN_TANAH.csv`, "Persiapan", "Pekerjaan Tanah"},
		{"rekap.xlsx[Pembesian]", "Struktur", "Besi & Baja"},
		{"catatan.csv", DefaultDivision, DefaultCategory},
	}
	for _, tc := range cases {
		division, category := c.Classify(tc.name)
		if division != tc.division || category != tc.category {
			t.Fatalf("%s: got %s/%s", tc.name, division, category)
		}
	}
}

func TestLoadClassifierFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - division: Jalan
    category: Perkerasan
    keywords: [aspal, LAPEN]
  - category: Tanpa Divisi
    keywords: [lain]
default:
  division: Lainnya
  category: Lainnya
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadClassifier(path)
	if err != nil {
		t.Fatal(err)
	}
	if d, cat := c.Classify("harga_lapen.csv"); d != "Jalan" || cat != "Perkerasan" {
		t.Fatalf("got %s/%s", d, cat)
	}
	if d, cat := c.Classify("lain.csv"); d != DefaultDivision || cat != "Tanpa Divisi" {
		t.Fatalf("got %s/%s", d, cat)
	}
	if d, cat := c.Classify("beton.csv"); d != "Lainnya" || cat != "Lainnya" {
		t.Fatalf("defaults should be replaced: %s/%s", d, cat)
	}
}

func TestLoadClassifierMissingFile(t *testing.T) {
	if _, err := LoadClassifier(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
