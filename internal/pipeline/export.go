package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"smartrab/internal"
)

const (
	sheetItems     = "Items"
	sheetPriceList = "Daftar Harga"
	sheetSummary   = "Rekap Kategori"
)

// ExportItemsToXLSX writes extracted work items with the same four columns
// the row extractor emits.
func ExportItemsToXLSX(items []internal.PricedItem, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetItems); err != nil {
		return err
	}

	headers := []any{internal.FieldCode, internal.FieldItemDescription, internal.FieldUnit, internal.FieldPrice}
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Code, it.Description, it.Unit, it.Price})
	}
	if err := writeSheet(f, sheetItems, headers, rows); err != nil {
		return err
	}
	return save(f, outputPath)
}

// ExportPriceList writes the master price list and its per-category summary
// into one workbook.
func ExportPriceList(entries []internal.PriceEntry, summary []internal.CategorySummary, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetPriceList); err != nil {
		return err
	}

	headers := []any{"id", "division", "category", "code", internal.FieldDescription, internal.FieldUnit, internal.FieldUnitPrice, "samples"}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ID, e.Division, e.Category, e.Code, e.Description, e.Unit, e.Price, e.Samples})
	}
	if err := writeSheet(f, sheetPriceList, headers, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	headers = []any{"category", "items", "priced", "min", "max", "average"}
	rows = rows[:0]
	for _, s := range summary {
		rows = append(rows, []any{s.Category, s.Count, s.Priced, s.Min, s.Max, s.Average})
	}
	if err := writeSheet(f, sheetSummary, headers, rows); err != nil {
		return err
	}

	return save(f, outputPath)
}

func writeSheet(f *excelize.File, sheet string, headers []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
