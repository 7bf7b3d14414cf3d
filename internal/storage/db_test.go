package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"smartrab/internal"
	"smartrab/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "smartrab.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.StartRun(ctx, "run-1", internal.ModeAuto); err != nil {
		t.Fatal(err)
	}
	good := internal.FileResult{
		File: "beton.csv", Hash: "h1", Kind: internal.SourceText, Encoding: "utf-8", Delimiter: ';',
		HeaderRow: 2, Mode: internal.ModeTable, Columns: []string{"description", "unit_price"},
		Rows: []internal.CanonicalRow{
			{LineNo: 4, Description: "Semen", Unit: "kg", UnitPrice: 1500, Coefficient: util.FloatPtr(326), SourceFile: "beton.csv", Extra: map[string]string{"no": "1"}},
			{LineNo: 5, Description: "Air", Unit: "-", PriceState: util.NumberAbsent, SourceFile: "beton.csv"},
		},
	}
	items := internal.FileResult{
		File: "rab.csv", Hash: "h2", Mode: internal.ModeItems,
		Items: []internal.PricedItem{{LineNo: 3, Code: "1.1", Description: "Pembersihan lokasi", Unit: "ls", Price: 2500000, SourceFile: "rab.csv"}},
	}
	bad := internal.FileResult{File: "rusak.xlsx", Hash: "h3", Mode: internal.ModeAuto, Err: errors.New("zip: not a valid zip file")}

	for _, res := range []internal.FileResult{good, items, bad} {
		if err := db.SaveFileResults(ctx, "run-1", []internal.FileResult{res}); err != nil {
			t.Fatal(err)
		}
	}
	batch := internal.BatchResult{RunID: "run-1", Files: []internal.FileResult{good, items, bad}}
	if err := db.FinishRun(ctx, "run-1", batch); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Files != 3 || runs[0].Failed != 1 || runs[0].Accepted != 3 || runs[0].FinishedAt == nil {
		t.Fatalf("runs: %+v", runs)
	}

	files, err := db.ListFiles(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 || files[0].HeaderRow != 2 || len(files[0].Columns) != 2 || files[2].Error == "" {
		t.Fatalf("files: %+v", files)
	}

	for hash, want := range map[string]bool{"h1": true, "h2": true, "h3": true, "nope": false, "": false} {
		got, err := db.HasFileHash(ctx, hash)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("hash %s: got %v", hash, got)
		}
	}

	var rows, priced int
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM canonical_rows`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM priced_items`).Scan(&priced); err != nil {
		t.Fatal(err)
	}
	if rows != 2 || priced != 1 {
		t.Fatalf("rows=%d priced=%d", rows, priced)
	}
}

func TestSaveFileResultsUnknownRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	res := internal.FileResult{File: "a.csv", Hash: "h", Mode: internal.ModeTable,
		Rows: []internal.CanonicalRow{{Description: "Semen", SourceFile: "a.csv"}}}
	if err := db.SaveFileResults(ctx, "missing-run", []internal.FileResult{res}); err == nil {
		t.Fatal("expected foreign key error")
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM canonical_rows`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("rows=%d", n)
	}
}

func TestSaveFileResultsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.StartRun(ctx, "run-1", internal.ModeTable); err != nil {
		t.Fatal(err)
	}
	if _, err := db.conn.Exec(`CREATE TRIGGER reject_second BEFORE INSERT ON files WHEN NEW.name = 'beton.html[table 2]'
BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatal(err)
	}

	tables := []internal.FileResult{
		{File: "beton.html[table 1]", Hash: "h", Mode: internal.ModeTable,
			Rows: []internal.CanonicalRow{{Description: "Semen", SourceFile: "beton.html[table 1]"}}},
		{File: "beton.html[table 2]", Hash: "h", Mode: internal.ModeTable,
			Rows: []internal.CanonicalRow{{Description: "Pasir", SourceFile: "beton.html[table 2]"}}},
	}
	if err := db.SaveFileResults(ctx, "run-1", tables); err == nil {
		t.Fatal("expected save error")
	}

	var files, rows int
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM files`).Scan(&files); err != nil {
		t.Fatal(err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(1) FROM canonical_rows`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if files != 0 || rows != 0 {
		t.Fatalf("files=%d rows=%d", files, rows)
	}
	if seen, err := db.HasFileHash(ctx, "h"); err != nil || seen {
		t.Fatalf("seen=%v err=%v", seen, err)
	}
}

func TestPriceListUpsert(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	entries := []internal.PriceEntry{
		{ID: "aaaa1111", Key: "semen portland", Category: "Bahan", Division: "Sumber Daya", Description: "Semen Portland", Unit: "zak", Price: 65000, Samples: 1, Priced: 1, Sources: []string{"a.csv"}},
		{ID: "bbbb2222", Key: "pekerja", Category: "Upah", Description: "Pekerja", Unit: "OH", Price: 120000, Samples: 2, Priced: 2},
	}
	if err := db.UpsertPriceList(ctx, entries); err != nil {
		t.Fatal(err)
	}
	entries[0].Price, entries[0].Samples, entries[0].Sources = 70000, 2, []string{"a.csv", "b.csv"}
	if err := db.UpsertPriceList(ctx, entries[:1]); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListPriceList(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("entries=%+v", all)
	}
	if all[0].Price != 70000 || all[0].Samples != 2 || len(all[0].Sources) != 2 || all[0].Division != "Sumber Daya" {
		t.Fatalf("updated: %+v", all[0])
	}

	upah, err := db.ListPriceList(ctx, "UPAH")
	if err != nil {
		t.Fatal(err)
	}
	if len(upah) != 1 || upah[0].ID != "bbbb2222" || len(upah[0].Sources) != 0 {
		t.Fatalf("upah: %+v", upah)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetMetadata("lastExport")
	if err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("lastExport", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("lastExport", "b"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetMetadata("lastExport")
	if err != nil || v == nil || *v != "b" {
		t.Fatalf("v=%v err=%v", v, err)
	}
}
