package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"smartrab/internal/config"
	"smartrab/internal/logging"
	"smartrab/internal/mailbox"
	"smartrab/internal/pipeline"
	"smartrab/internal/pricebook"
	"smartrab/internal/storage"
	"smartrab/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer log.Sync()

	vocab, err := pipeline.LoadVocabulary(cfg.VocabPath)
	must(err)
	classifier, err := pricebook.LoadClassifier(cfg.ClassifierPath)
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	var fetcher *mailbox.Fetcher
	if cfg.IMAPEnabled() {
		src, err := mailbox.NewIMAPSource(cfg)
		must(err)
		fetcher = mailbox.NewFetcher(src, cfg.MailDir, log)
	}

	ingest := pipeline.NewIngestionService(db, classifier, pipeline.OptionsFromConfig(cfg, vocab), log)
	svc := watcher.NewService(db, ingest, fetcher, cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("watching", zap.String("input", cfg.InputDir), zap.Bool("mail", fetcher != nil))
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
