package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath         string
	InputDir       string
	OutputDir      string
	VocabPath      string
	ClassifierPath string

	IngestMode    string
	IngestWorkers int

	HeaderScanSimple   int
	HeaderScanAdvanced int
	HeaderMinMatches   int
	PriceThreshold     float64
	MinDescriptionLen  int
	UnitPlaceholder    string
	DefaultUnit        string

	SearchOKThreshold     float64
	SearchReviewThreshold float64

	WatchIntervalSec int
	WatchAutoExport  bool

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool
	MailDir      string
	MailLabel    string
	MailFetchMax int

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:         getEnv("DB_PATH", filepath.Join(cwd, "data", "smartrab.db")),
		InputDir:       getEnv("INPUT_DIR", filepath.Join(cwd, "data", "inbox")),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		VocabPath:      getEnv("VOCAB_PATH", ""),
		ClassifierPath: getEnv("CLASSIFIER_PATH", ""),

		IngestMode:    getEnv("INGEST_MODE", "auto"),
		IngestWorkers: getEnvInt("INGEST_WORKERS", 1),

		HeaderScanSimple:   getEnvInt("HEADER_SCAN_SIMPLE", 20),
		HeaderScanAdvanced: getEnvInt("HEADER_SCAN_ADVANCED", 30),
		HeaderMinMatches:   getEnvInt("HEADER_MIN_MATCHES", 2),
		PriceThreshold:     getEnvFloat("PRICE_THRESHOLD", 100),
		MinDescriptionLen:  getEnvInt("MIN_DESCRIPTION_LEN", 5),
		UnitPlaceholder:    getEnv("UNIT_PLACEHOLDER", "-"),
		DefaultUnit:        getEnv("DEFAULT_UNIT", "ls"),

		SearchOKThreshold:     getEnvFloat("SEARCH_OK_THRESHOLD", 0.90),
		SearchReviewThreshold: getEnvFloat("SEARCH_REVIEW_THRESHOLD", 0.60),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", true),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),
		MailDir:      getEnv("MAIL_DIR", filepath.Join(cwd, "data", "mail")),
		MailLabel:    getEnv("MAIL_LABEL", "INBOX"),
		MailFetchMax: getEnvInt("MAIL_FETCH_MAX", 50),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	switch cfg.IngestMode {
	case "table", "items", "auto":
	default:
		return Config{}, fmt.Errorf("invalid INGEST_MODE %q: want table|items|auto", cfg.IngestMode)
	}
	if cfg.IngestWorkers < 1 {
		cfg.IngestWorkers = 1
	}

	return cfg, nil
}

func (c Config) IMAPEnabled() bool {
	return strings.TrimSpace(c.IMAPHost) != ""
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
