package pricebook

import (
	"testing"

	"smartrab/internal"
)

func TestEntryID(t *testing.T) {
	if got := EntryID("  Pasir Beton "); got != EntryID("pasir beton") || len(got) != 8 {
		t.Fatalf("id=%q", got)
	}
	if EntryID("Pasir Beton") == EntryID("Pasir Pasang") {
		t.Fatal("different descriptions share an id")
	}
}

func TestBookAveragesDuplicates(t *testing.T) {
	b := New()
	n := b.AddRows([]internal.CanonicalRow{
		{Description: "Pasir Beton", Unit: "m3", UnitPrice: 250000, SourceFile: "a.csv", Category: "Beton", Division: "Struktur"},
		{Description: "pasir  beton", Unit: "m3", UnitPrice: 260000.5, SourceFile: "b.csv", Category: "Beton", Division: "Struktur"},
		{Description: "PASIR BETON", Unit: "-", UnitPrice: 0, SourceFile: "b.csv", Category: "Beton", Division: "Struktur"},
		{Description: "Pasir Beton", Unit: "m3", UnitPrice: 300000, SourceFile: "c.csv", Category: "Bahan"},
		{Description: "  ", UnitPrice: 1000},
	})
	if n != 4 {
		t.Fatalf("added=%d", n)
	}

	entries := b.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries=%+v", entries)
	}
	bahan, beton := entries[0], entries[1]
	if bahan.Category != "Bahan" || bahan.Division != DefaultDivision || bahan.Price != 300000 {
		t.Fatalf("bahan: %+v", bahan)
	}
	if beton.Samples != 3 || beton.Priced != 2 || beton.Price != 255000.25 {
		t.Fatalf("beton: %+v", beton)
	}
	if beton.Unit != "m3" || beton.Description != "Pasir Beton" || beton.ID != EntryID("Pasir Beton") {
		t.Fatalf("beton: %+v", beton)
	}
	if len(beton.Sources) != 2 {
		t.Fatalf("sources: %v", beton.Sources)
	}
}

func TestBookItemsKeepCode(t *testing.T) {
	b := New()
	b.AddItems([]internal.PricedItem{
		{Code: "2.1.3", Description: "Plesteran 1:4 tebal 15 mm", Unit: "m2", Price: 75000.5},
	})
	b.AddRows([]internal.CanonicalRow{{Description: "Plesteran 1:4 tebal 15 mm", Unit: "m2", UnitPrice: 74999.5}})
	got := b.Entries()
	if len(got) != 1 || got[0].Code != "2.1.3" || got[0].Price != 75000 || got[0].Category != DefaultCategory {
		t.Fatalf("entries: %+v", got)
	}
}

func TestBookLoadContinuesAverage(t *testing.T) {
	b := New()
	b.Load([]internal.PriceEntry{{Category: "Beton", Description: "Semen Portland", Unit: "zak", Price: 60000, Samples: 3, Priced: 2}})
	b.AddRows([]internal.CanonicalRow{{Description: "Semen portland", UnitPrice: 75000, Category: "Beton"}})

	got := b.Entries()
	if len(got) != 1 {
		t.Fatalf("entries=%+v", got)
	}
	if got[0].Price != 65000 || got[0].Samples != 4 || got[0].Priced != 3 || got[0].ID != EntryID("Semen Portland") {
		t.Fatalf("entry: %+v", got[0])
	}
}

func TestBookCategory(t *testing.T) {
	b := New()
	b.AddRows([]internal.CanonicalRow{
		{Description: "Semen Portland", UnitPrice: 65000, Category: "Bahan"},
		{Description: "Pekerja", UnitPrice: 120000, Category: "Upah"},
	})
	if got := b.Category("upah"); len(got) != 1 || got[0].Description != "Pekerja" {
		t.Fatalf("category: %+v", got)
	}
	if got := b.Category(""); len(got) != 2 {
		t.Fatalf("all: %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	entries := []internal.PriceEntry{
		{Category: "Upah", Price: 120000},
		{Category: "Bahan", Price: 65000},
		{Category: "Bahan", Price: 0},
		{Category: "Bahan", Price: 250000},
	}
	got := Summarize(entries)
	if len(got) != 2 || got[0].Category != "Bahan" {
		t.Fatalf("summary: %+v", got)
	}
	bahan := got[0]
	if bahan.Count != 3 || bahan.Priced != 2 || bahan.Min != 65000 || bahan.Max != 250000 || bahan.Average != 157500 {
		t.Fatalf("bahan: %+v", bahan)
	}
	if got[1].Average != 120000 {
		t.Fatalf("upah: %+v", got[1])
	}
}
