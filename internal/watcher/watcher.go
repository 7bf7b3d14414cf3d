package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"smartrab/internal"
	"smartrab/internal/config"
	"smartrab/internal/mailbox"
	"smartrab/internal/pipeline"
	"smartrab/internal/pricebook"
)

const (
	PriceListFile      = "price_list.xlsx"
	MetaLastExport     = "lastExport"
	defaultIntervalSec = 30
)

// Store is the persistence the watcher needs; *storage.DB implements it.
type Store interface {
	pricebook.PriceStore
	HasFileHash(ctx context.Context, hash string) (bool, error)
	SetMetadata(key, value string) error
}

type CycleResult struct {
	Fetched  int
	Scanned  int
	New      int
	Failed   int
	Merged   int
	Exported string
}

type Service struct {
	store   Store
	ingest  *pipeline.IngestionService
	fetcher *mailbox.Fetcher
	cfg     config.Config
	log     *zap.Logger
}

// NewService wires a polling ingester. fetcher may be nil when no mailbox is
// configured.
func NewService(store Store, ingest *pipeline.IngestionService, fetcher *mailbox.Fetcher, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, ingest: ingest, fetcher: fetcher, cfg: cfg, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = defaultIntervalSec * time.Second
	}
	for {
		res, err := s.RunCycle(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			s.log.Error("watch cycle failed", zap.Error(err))
		case res.New > 0 || res.Fetched > 0:
			s.log.Info("watch cycle done",
				zap.Int("fetched", res.Fetched),
				zap.Int("scanned", res.Scanned),
				zap.Int("new", res.New),
				zap.Int("failed", res.Failed),
				zap.Int("merged", res.Merged),
				zap.String("exported", res.Exported),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches mail when configured, ingests every input file whose
// content has not been ingested before, merges the result into the price
// list and re-exports it.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	if s.fetcher != nil {
		fetched, err := s.fetcher.FetchAndStore(s.cfg.MailLabel, s.cfg.MailFetchMax)
		if err != nil {
			s.log.Warn("mail fetch failed", zap.Error(err))
		}
		res.Fetched = fetched.Stored
	}

	candidates, err := Scan(s.cfg.InputDir, s.cfg.MailDir)
	if err != nil {
		return res, err
	}
	res.Scanned = len(candidates)

	var fresh []string
	for _, path := range candidates {
		seen, err := s.seen(ctx, path)
		if err != nil {
			s.log.Warn("skip unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}
		if !seen {
			fresh = append(fresh, path)
		}
	}
	res.New = len(fresh)
	if len(fresh) == 0 {
		return res, nil
	}

	batch, err := s.ingest.IngestBatch(ctx, fresh)
	res.Failed = batch.Failed()
	if err != nil {
		return res, err
	}

	entries, merged, err := pricebook.Sync(ctx, s.store, batch)
	if err != nil {
		return res, err
	}
	res.Merged = merged

	if s.cfg.WatchAutoExport && merged > 0 {
		out := filepath.Join(s.cfg.OutputDir, PriceListFile)
		if err := exportPriceList(entries, out); err != nil {
			return res, err
		}
		res.Exported = out
		_ = s.store.SetMetadata(MetaLastExport, time.Now().UTC().Format(time.RFC3339))
	}
	return res, nil
}

func (s *Service) seen(ctx context.Context, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(raw)
	return s.store.HasFileHash(ctx, hex.EncodeToString(sum[:]))
}

func exportPriceList(entries []internal.PriceEntry, out string) error {
	return pipeline.ExportPriceList(entries, pricebook.Summarize(entries), out)
}

// Scan lists supported files under dirs in a stable order. Missing
// directories are ignored.
func Scan(dirs ...string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == dir {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || !pipeline.SupportedExtension(path) {
				return nil
			}
			if _, ok := seen[path]; !ok {
				seen[path] = struct{}{}
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}
