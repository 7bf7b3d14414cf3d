package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartrab/internal"
	"smartrab/internal/config"
)

type Options struct {
	Mode        internal.IngestMode
	Workers     int
	TableHeader HeaderOptions
	ItemHeader  HeaderOptions
	Schema      SchemaOptions
	Items       ItemOptions
}

func DefaultOptions(v Vocabulary) Options {
	return Options{
		Mode:        internal.ModeAuto,
		Workers:     1,
		TableHeader: HeaderOptions{Window: SimpleScanWindow, MinMatches: DefaultMinMatches, Keywords: v.HeaderKeywords},
		ItemHeader:  HeaderOptions{Window: AdvancedScanWindow, MinMatches: DefaultMinMatches, Keywords: v.HeaderKeywords},
		Schema:      SchemaOptions{Vocabulary: v, UnitPlaceholder: "-"},
		Items:       DefaultItemOptions(v),
	}
}

func OptionsFromConfig(cfg config.Config, v Vocabulary) Options {
	opts := DefaultOptions(v)
	opts.Mode = internal.IngestMode(cfg.IngestMode)
	opts.Workers = cfg.IngestWorkers
	opts.TableHeader.Window = cfg.HeaderScanSimple
	opts.TableHeader.MinMatches = cfg.HeaderMinMatches
	opts.ItemHeader.Window = cfg.HeaderScanAdvanced
	opts.ItemHeader.MinMatches = cfg.HeaderMinMatches
	opts.Schema.UnitPlaceholder = cfg.UnitPlaceholder
	opts.Items.PriceThreshold = cfg.PriceThreshold
	opts.Items.MinDescriptionLen = cfg.MinDescriptionLen
	opts.Items.DefaultUnit = cfg.DefaultUnit
	return opts
}

// ParseRecord runs the pipeline over one decoded record. It holds no state and
// never fails; problems end up in the Diagnostic field.
func ParseRecord(rec internal.RawRecord, opts Options) internal.FileResult {
	res := internal.FileResult{
		File:      rec.Name,
		Kind:      rec.Kind,
		Encoding:  rec.Encoding,
		Delimiter: rec.Delimiter,
		Mode:      opts.Mode,
	}
	if isBlank(rec.Lines) {
		res.Diagnostic = "empty input"
		return res
	}

	switch opts.Mode {
	case internal.ModeItems:
		parseItems(rec, opts, &res)
	case internal.ModeTable:
		parseTable(rec, opts, &res)
	default:
		if schema := parseTable(rec, opts, &res); !schema.HasColumn(internal.FieldDescription) {
			diag := res.Diagnostic
			res.Rows, res.Columns = nil, nil
			parseItems(rec, opts, &res)
			res.Diagnostic = strings.TrimPrefix(diag+"; fell back to item extraction", "; ")
		}
	}
	return res
}

func parseTable(rec internal.RawRecord, opts Options, res *internal.FileResult) SchemaResult {
	res.Mode = internal.ModeTable
	res.HeaderRow = LocateHeader(rec.Lines, rec.Delimiter, opts.TableHeader)
	schema := NormalizeSchema(rec, res.HeaderRow, opts.Schema)
	res.Columns = schema.Columns
	res.Rows = schema.Rows
	res.Diagnostic = schema.Diagnostic
	return schema
}

func parseItems(rec internal.RawRecord, opts Options, res *internal.FileResult) {
	res.Mode = internal.ModeItems
	res.HeaderRow = LocateHeader(rec.Lines, rec.Delimiter, opts.ItemHeader)
	res.Columns = []string{internal.FieldCode, internal.FieldItemDescription, internal.FieldUnit, internal.FieldPrice}
	res.Items = ExtractItems(rec, opts.Items).Items
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

// Classifier labels a file from its name only.
type Classifier interface {
	Classify(fileName string) (division, category string)
}

// ResultSink receives finished file results. SaveFileResults gets every record
// parsed from one input file and must store all of them or none.
type ResultSink interface {
	StartRun(ctx context.Context, runID string, mode internal.IngestMode) error
	SaveFileResults(ctx context.Context, runID string, results []internal.FileResult) error
	FinishRun(ctx context.Context, runID string, batch internal.BatchResult) error
}

type IngestionService struct {
	sink       ResultSink
	classifier Classifier
	opts       Options
	log        *zap.Logger
}

// NewIngestionService wires the pipeline to its collaborators. sink and
// classifier may be nil.
func NewIngestionService(sink ResultSink, classifier Classifier, opts Options, log *zap.Logger) *IngestionService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &IngestionService{sink: sink, classifier: classifier, opts: opts, log: log}
}

// IngestFile parses one file from disk. A file yields one result per source
// record it contains, or a single failed result.
func (s *IngestionService) IngestFile(ctx context.Context, path string) []internal.FileResult {
	name := filepath.Base(path)
	if err := ctx.Err(); err != nil {
		return []internal.FileResult{{File: name, Mode: s.opts.Mode, Err: err}}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return []internal.FileResult{{File: name, Mode: s.opts.Mode, Err: fmt.Errorf("read %s: %w", name, err)}}
	}
	return s.IngestBytes(name, content)
}

// IngestBytes parses content already in memory. A parser panic becomes a
// failed result that still carries the content hash.
func (s *IngestionService) IngestBytes(name string, content []byte) (results []internal.FileResult) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	defer func() {
		if r := recover(); r != nil {
			results = []internal.FileResult{{File: name, Hash: hash, Mode: s.opts.Mode, Err: fmt.Errorf("panic while parsing: %v", r)}}
		}
	}()

	records, err := LoadSources(name, content)
	if err != nil {
		return []internal.FileResult{{File: name, Hash: hash, Mode: s.opts.Mode, Err: err}}
	}
	if len(records) == 0 {
		return []internal.FileResult{{File: name, Hash: hash, Mode: s.opts.Mode, Diagnostic: "no tables found"}}
	}

	out := make([]internal.FileResult, 0, len(records))
	for _, rec := range records {
		res := ParseRecord(rec, s.opts)
		res.Hash = hash
		s.classify(&res)
		out = append(out, res)
	}
	return out
}

func (s *IngestionService) classify(res *internal.FileResult) {
	if s.classifier == nil {
		return
	}
	division, category := s.classifier.Classify(res.File)
	res.Division, res.Category = division, category
	for i := range res.Rows {
		res.Rows[i].Division, res.Rows[i].Category = division, category
	}
	for i := range res.Items {
		res.Items[i].Division, res.Items[i].Category = division, category
	}
}

// IngestBatch parses paths with up to Workers files in flight. Results keep
// the order of paths; a file is persisted only after it parsed completely and
// a failed file contributes no rows. Cancelling ctx stops new files from
// starting.
func (s *IngestionService) IngestBatch(ctx context.Context, paths []string) (internal.BatchResult, error) {
	batch := internal.BatchResult{RunID: uuid.NewString()}
	start := time.Now()

	if s.sink != nil {
		if err := s.sink.StartRun(ctx, batch.RunID, s.opts.Mode); err != nil {
			return batch, fmt.Errorf("start run: %w", err)
		}
	}

	slots := make([][]internal.FileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			slots[i] = []internal.FileResult{{File: filepath.Base(path), Mode: s.opts.Mode, Err: ctx.Err()}}
			continue
		}
		i, path := i, path
		g.Go(func() error {
			slots[i] = s.IngestFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	// work already parsed is still recorded after ctx is cancelled
	saveCtx := context.WithoutCancel(ctx)
	for _, results := range slots {
		results = s.commitFile(saveCtx, batch.RunID, results)
		for _, res := range results {
			s.logResult(batch.RunID, res)
			batch.Files = append(batch.Files, res)
		}
	}

	if s.sink != nil {
		if err := s.sink.FinishRun(saveCtx, batch.RunID, batch); err != nil {
			return batch, fmt.Errorf("finish run: %w", err)
		}
	}

	s.log.Info("ingest batch done",
		zap.String("run", batch.RunID),
		zap.Int("files", len(batch.Files)),
		zap.Int("failed", batch.Failed()),
		zap.Int("rows", len(batch.Rows())),
		zap.Int("items", len(batch.Items())),
		zap.Duration("took", time.Since(start)),
	)
	return batch, ctx.Err()
}

// commitFile applies the all-or-nothing rule to the records of one input
// file: when any of them failed, or saving them failed, none keeps its rows.
func (s *IngestionService) commitFile(ctx context.Context, runID string, results []internal.FileResult) []internal.FileResult {
	var failed error
	for _, res := range results {
		if res.Err != nil {
			failed = fmt.Errorf("%s: %w", res.File, res.Err)
			break
		}
	}
	if failed != nil {
		dropRows(results, failed)
		if isContextErr(failed) {
			return results
		}
	}

	if s.sink != nil {
		if err := s.sink.SaveFileResults(ctx, runID, results); err != nil {
			dropRows(results, fmt.Errorf("save: %w", err))
		}
	}
	return results
}

// dropRows clears every record's rows; records without an error of their own
// get err.
func dropRows(results []internal.FileResult, err error) {
	for i := range results {
		results[i].Rows, results[i].Items = nil, nil
		if results[i].Err == nil {
			results[i].Err = err
		}
	}
}

func (s *IngestionService) logResult(runID string, res internal.FileResult) {
	fields := []zap.Field{
		zap.String("run", runID),
		zap.String("file", res.File),
		zap.String("mode", string(res.Mode)),
		zap.String("encoding", res.Encoding),
		zap.String("delimiter", string(res.Delimiter)),
		zap.Int("header_row", res.HeaderRow),
		zap.Int("accepted", res.Accepted()),
		zap.Strings("columns", res.Columns),
	}
	if res.Diagnostic != "" {
		fields = append(fields, zap.String("diagnostic", res.Diagnostic))
	}
	if res.Err != nil {
		s.log.Warn("file failed", append(fields, zap.Error(res.Err))...)
		return
	}
	s.log.Info("file ingested", fields...)
}
