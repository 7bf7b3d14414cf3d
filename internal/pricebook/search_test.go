package pricebook

import (
	"testing"

	"smartrab/internal"
)

func searchFixture() []internal.PriceEntry {
	return []internal.PriceEntry{
		{Category: "Pasangan & Plesteran", Code: "2.1.3", Description: "Plesteran 1:4 tebal 15 mm", Unit: "m2", Price: 75000.5},
		{Category: "Beton", Description: "Pasir Beton", Unit: "m3", Price: 255000},
		{Category: "Bahan", Description: "Pasir Beton", Unit: "m3", Price: 300000},
		{Category: "Bahan", Description: "Semen Portland 50 kg", Unit: "zak", Price: 65000},
		{Category: "Besi & Baja", Description: "Besi beton polos 10 mm", Unit: "kg", Price: 14500},
	}
}

func TestSearch(t *testing.T) {
	s := NewSearcher(searchFixture(), 0, 0)

	cases := []struct {
		query      string
		status     Status
		reason     Reason
		best       string
		candidates int
	}{
		{"2.1.3", StatusOK, ReasonCode, "Plesteran 1:4 tebal 15 mm", 1},
		{"SEMEN PORTLAND 50 KG", StatusOK, ReasonDescription, "Semen Portland 50 kg", 1},
		{"pasir beton", StatusReview, ReasonDescription, "", 2},
		{"plesteran 1:4 tebal 15 mm.", StatusOK, ReasonFuzzy, "Plesteran 1:4 tebal 15 mm", -1},
		{"semen portland 40 kg", StatusReview, ReasonFuzzy, "Semen Portland 50 kg", -1},
		{"zzzz qqqq", StatusNotFound, ReasonNone, "", -1},
		{"", StatusNotFound, ReasonNone, "", 0},
	}
	for _, tc := range cases {
		got := s.Search(tc.query)
		if got.Status != tc.status || got.Reason != tc.reason {
			t.Fatalf("%q: status=%s reason=%s confidence=%v", tc.query, got.Status, got.Reason, got.Confidence)
		}
		if tc.best == "" && got.Best != nil {
			t.Fatalf("%q: unexpected best %+v", tc.query, got.Best)
		}
		if tc.best != "" && (got.Best == nil || got.Best.Description != tc.best) {
			t.Fatalf("%q: best=%+v", tc.query, got.Best)
		}
		if tc.candidates >= 0 && len(got.Candidates) != tc.candidates {
			t.Fatalf("%q: candidates=%d", tc.query, len(got.Candidates))
		}
	}
}

func TestSearchCandidatesSorted(t *testing.T) {
	got := NewSearcher(searchFixture(), 0, 0).Search("besi beton")
	if len(got.Candidates) < 2 {
		t.Fatalf("candidates=%+v", got.Candidates)
	}
	for i := 1; i < len(got.Candidates); i++ {
		if got.Candidates[i].Score > got.Candidates[i-1].Score {
			t.Fatalf("not sorted: %+v", got.Candidates)
		}
	}
}

func TestScore(t *testing.T) {
	if Score("", "beton", nil, nil) != 0 {
		t.Fatal("empty query must score 0")
	}
	if got := Score("pasir beton", "pasir beton", []string{"pasir", "beton"}, []string{"pasir", "beton"}); got < 0.999 {
		t.Fatalf("identical=%v", got)
	}
}
