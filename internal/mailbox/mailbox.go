package mailbox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Message is one raw RFC 822 message pulled from a mailbox.
type Message struct {
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type Source interface {
	FetchInbox(label string, max int) ([]Message, error)
}

// Spool keeps fetched messages as <sha256>.eml files so the ingestion
// pipeline reads them like any other input file.
type Spool struct {
	dir string
}

func NewSpool(dir string) *Spool {
	return &Spool{dir: dir}
}

func (s *Spool) Dir() string { return s.dir }

// Store writes msg unless an identical message is already spooled.
func (s *Spool) Store(msg Message) (string, bool, error) {
	if len(msg.Raw) == 0 {
		return "", false, errors.New("empty message")
	}
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", false, err
	}

	rawPath := filepath.Join(s.dir, hash+".eml")
	if _, err := os.Stat(rawPath); err == nil {
		return rawPath, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, err
	}
	if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
		return "", false, err
	}
	return rawPath, true, nil
}

type FetchResult struct {
	Fetched int
	Stored  int
	Paths   []string
}

type Fetcher struct {
	source Source
	spool  *Spool
	log    *zap.Logger
}

func NewFetcher(source Source, dir string, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{source: source, spool: NewSpool(dir), log: log}
}

// FetchAndStore pulls unseen messages and spools them. Paths lists only the
// files written by this call.
func (f *Fetcher) FetchAndStore(label string, max int) (FetchResult, error) {
	if max <= 0 {
		max = 50
	}
	messages, err := f.source.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		path, created, err := f.spool.Store(msg)
		if err != nil {
			f.log.Warn("mail not stored", zap.String("message_id", msg.MessageID), zap.Error(err))
			continue
		}
		if !created {
			continue
		}
		result.Stored++
		result.Paths = append(result.Paths, path)
		f.log.Info("mail stored",
			zap.String("message_id", msg.MessageID),
			zap.String("subject", msg.Subject),
			zap.String("from", msg.From),
			zap.String("path", path),
		)
	}
	return result, nil
}
