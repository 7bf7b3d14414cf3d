package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartrab/internal/config"
	"smartrab/internal/logging"
	"smartrab/internal/pipeline"
	"smartrab/internal/pricebook"
	"smartrab/internal/storage"
)

// env holds what every command shares. The database is opened on first use
// so commands that never touch it run without one.
type env struct {
	cfg        config.Config
	log        *zap.Logger
	vocab      pipeline.Vocabulary
	classifier *pricebook.KeywordClassifier
	db         *storage.DB
}

func (e *env) store() (*storage.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := storage.Open(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.cfg.DBPath, err)
	}
	e.db = db
	return db, nil
}

func (e *env) options() pipeline.Options {
	return pipeline.OptionsFromConfig(e.cfg, e.vocab)
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	_ = e.log.Sync()
}

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)

	vocab, err := pipeline.LoadVocabulary(cfg.VocabPath)
	must(err)
	classifier, err := pricebook.LoadClassifier(cfg.ClassifierPath)
	must(err)

	e := &env{cfg: cfg, log: log, vocab: vocab, classifier: classifier}
	defer e.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := &cobra.Command{
		Use:           "smartrab",
		Short:         "Ingest AHSP and price-list spreadsheets into a master price list",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		ingestCmd(e),
		inspectCmd(e),
		extractCmd(e),
		exportCmd(e),
		searchCmd(e),
		runsCmd(e),
		watchCmd(e),
		mailFetchCmd(e),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		e.close()
		must(err)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
