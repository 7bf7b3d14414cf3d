package pipeline

import (
	"strings"
	"testing"
)

func TestLocateHeader(t *testing.T) {
	opts := HeaderOptions{Window: SimpleScanWindow, MinMatches: DefaultMinMatches}
	cases := []struct {
		name  string
		lines []string
		want  int
	}{
		{
			name:  "first line",
			lines: []string{"Uraian Pekerjaan;Sat.;Koefisien;Harga Satuan (Rp)", "Semen;zak;0,5;65000"},
			want:  0,
		},
		{
			name: "after banner and blank lines",
			lines: []string{
				"DAFTAR ANALISA PEKERJAAN",
				"Kabupaten Sleman 2024",
				"",
				"",
				"No;Uraian;Satuan;Koefisien;Harga Satuan;Jumlah Harga",
				"1;Pekerja;OH;0,75;120000;90000",
			},
			want: 4,
		},
		{
			name: "analysis title above the header",
			lines: []string{
				"ANALISA HARGA SATUAN PEKERJAAN;;;;",
				"No;Uraian;Satuan;Koefisien;Harga Satuan",
				"1;Semen Portland;zak;0,5;65.000,00",
			},
			want: 1,
		},
		{
			name:  "single keyword is not a header",
			lines: []string{"Daftar Uraian", "Pekerja;OH;1"},
			want:  0,
		},
		{
			name:  "no header at all",
			lines: []string{"a;b;c", "1;2;3"},
			want:  0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LocateHeader(tc.lines, ';', opts); got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestLocateHeaderWindow(t *testing.T) {
	banner := make([]string, 0, 40)
	for i := 0; i < 25; i++ {
		banner = append(banner, "keterangan proyek")
	}
	lines := append(banner, "Kode;Uraian;Satuan;Harga Satuan")

	if got := LocateHeader(lines, ';', HeaderOptions{Window: SimpleScanWindow}); got != 0 {
		t.Fatalf("simple window: got %d want fallback 0", got)
	}
	if got := LocateHeader(lines, ';', HeaderOptions{Window: AdvancedScanWindow}); got != 25 {
		t.Fatalf("advanced window: got %d want 25", got)
	}
}

func TestHeaderScoreCaseInsensitive(t *testing.T) {
	if got := HeaderScore(strings.ToUpper("uraian,satuan"), ',', []string{"uraian", "satuan"}); got != 2 {
		t.Fatalf("got %d", got)
	}
}

func TestHeaderScoreConsumesLongerKeyword(t *testing.T) {
	keywords := DefaultVocabulary().HeaderKeywords
	cases := []struct {
		line string
		want int
	}{
		{line: "ANALISA HARGA SATUAN PEKERJAAN;;;;", want: 1},
		{line: "No;Uraian;Satuan;Koefisien;Harga Satuan", want: 4},
		{line: "Harga Satuan;Satuan", want: 2},
	}
	for _, tc := range cases {
		if got := HeaderScore(tc.line, ';', keywords); got != tc.want {
			t.Fatalf("%q: got %d want %d", tc.line, got, tc.want)
		}
	}
}
