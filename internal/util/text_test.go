package util

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"  Uraian Pekerjaan ":     "uraian pekerjaan",
		"Harga Satuan\n(Rp)":      "harga satuan (rp)",
		"\ufeffSat.":              "sat.",
		"JUMLAH\r\nHARGA   (Rp)": "jumlah harga (rp)",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Fatalf("NormalizeHeader(%q) = %q want %q", in, got, want)
		}
	}
}

func TestNormalizeDescription(t *testing.T) {
	got := NormalizeDescription(`  "Pasangan  Bata Merah 1:4"  `)
	if got != "pasangan bata merah 1 4" {
		t.Fatalf("got %q", got)
	}
}

func TestDiceCoefficient(t *testing.T) {
	if DiceCoefficient("beton", "beton") != 1 {
		t.Fatal("identical strings must score 1")
	}
	if DiceCoefficient("", "beton") != 0 {
		t.Fatal("empty string must score 0")
	}
	s := DiceCoefficient("pasangan bata", "pasangan batu")
	if s <= 0.5 || s >= 1 {
		t.Fatalf("unexpected score %v", s)
	}
}

func TestLooksLikeCode(t *testing.T) {
	if !LooksLikeCode("2.1.3") || !LooksLikeCode("A.1") {
		t.Fatal("expected code")
	}
	if LooksLikeCode("Kode") || LooksLikeCode("pasangan 1") {
		t.Fatal("expected non-code")
	}
}
