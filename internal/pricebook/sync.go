package pricebook

import (
	"context"
	"fmt"

	"smartrab/internal"
)

type PriceStore interface {
	ListPriceList(ctx context.Context, category string) ([]internal.PriceEntry, error)
	UpsertPriceList(ctx context.Context, entries []internal.PriceEntry) error
}

// Sync folds a batch into the stored price list and writes the result back.
// It returns the full list and the number of observations merged.
func Sync(ctx context.Context, store PriceStore, batch internal.BatchResult) ([]internal.PriceEntry, int, error) {
	stored, err := store.ListPriceList(ctx, "")
	if err != nil {
		return nil, 0, fmt.Errorf("load price list: %w", err)
	}
	book := New()
	book.Load(stored)
	added := book.AddBatch(batch)
	entries := book.Entries()
	if added == 0 {
		return entries, 0, nil
	}
	if err := store.UpsertPriceList(ctx, entries); err != nil {
		return nil, 0, fmt.Errorf("save price list: %w", err)
	}
	return entries, added, nil
}
