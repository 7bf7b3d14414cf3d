package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"smartrab/internal"
)

type DB struct {
	conn *sql.DB
}

type RunSummary struct {
	ID         string
	Mode       string
	StartedAt  string
	FinishedAt *string
	Files      int
	Failed     int
	Accepted   int
}

type FileRow struct {
	ID         int64
	RunID      string
	Name       string
	Hash       string
	Mode       string
	HeaderRow  int
	Columns    []string
	Category   string
	Diagnostic string
	Accepted   int
	Error      string
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// pragmas are per connection
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  mode TEXT NOT NULL,
  files INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  accepted INTEGER NOT NULL DEFAULT 0,
  startedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  finishedAt TEXT
);

CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  name TEXT NOT NULL,
  hash TEXT NOT NULL,
  kind TEXT,
  encoding TEXT,
  delimiter TEXT,
  headerRow INTEGER NOT NULL DEFAULT 0,
  mode TEXT NOT NULL,
  columnsJson TEXT NOT NULL,
  category TEXT,
  diagnostic TEXT,
  accepted INTEGER NOT NULL DEFAULT 0,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);

CREATE TABLE IF NOT EXISTS canonical_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fileId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  description TEXT NOT NULL,
  unit TEXT,
  unitPrice REAL NOT NULL,
  priceState TEXT NOT NULL,
  coefficient REAL,
  totalPrice REAL,
  sourceFile TEXT NOT NULL,
  category TEXT,
  division TEXT,
  extraJson TEXT NOT NULL,
  FOREIGN KEY(fileId) REFERENCES files(id)
);

CREATE TABLE IF NOT EXISTS priced_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fileId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  code TEXT NOT NULL,
  description TEXT NOT NULL,
  unit TEXT NOT NULL,
  price REAL NOT NULL,
  sourceFile TEXT NOT NULL,
  category TEXT,
  division TEXT,
  FOREIGN KEY(fileId) REFERENCES files(id)
);

CREATE TABLE IF NOT EXISTS price_list (
  category TEXT NOT NULL,
  key TEXT NOT NULL,
  id TEXT NOT NULL,
  division TEXT,
  code TEXT,
  description TEXT NOT NULL,
  unit TEXT,
  price REAL NOT NULL,
  samples INTEGER NOT NULL,
  priced INTEGER NOT NULL,
  sourcesJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(category, key)
);
CREATE INDEX IF NOT EXISTS idx_price_list_id ON price_list(id);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) StartRun(ctx context.Context, runID string, mode internal.IngestMode) error {
	_, err := d.conn.ExecContext(ctx, `INSERT INTO runs (id, mode) VALUES (?, ?)`, runID, string(mode))
	return err
}

// SaveFileResults stores the reports of every record parsed from one input
// file, with all of their rows, in a single transaction.
func (d *DB) SaveFileResults(ctx context.Context, runID string, results []internal.FileResult) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, res := range results {
		if err := insertFileResult(ctx, tx, runID, res); err != nil {
			return fmt.Errorf("save %s: %w", res.File, err)
		}
	}
	return tx.Commit()
}

func insertFileResult(ctx context.Context, tx *sql.Tx, runID string, res internal.FileResult) error {
	columnsJSON, _ := json.Marshal(res.Columns)
	if res.Columns == nil {
		columnsJSON = []byte("[]")
	}
	var errText *string
	if res.Err != nil {
		msg := res.Err.Error()
		errText = &msg
	}
	delimiter := ""
	if res.Delimiter != 0 {
		delimiter = string(res.Delimiter)
	}

	result, err := tx.ExecContext(ctx, `
INSERT INTO files (runId, name, hash, kind, encoding, delimiter, headerRow, mode, columnsJson, category, diagnostic, accepted, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, runID, res.File, res.Hash, string(res.Kind), res.Encoding, delimiter, res.HeaderRow, string(res.Mode),
		string(columnsJSON), res.Category, res.Diagnostic, res.Accepted(), errText)
	if err != nil {
		return err
	}
	fileID, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if len(res.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO canonical_rows (fileId, lineNo, description, unit, unitPrice, priceState, coefficient, totalPrice, sourceFile, category, division, extraJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range res.Rows {
			extraJSON, _ := json.Marshal(r.Extra)
			if r.Extra == nil {
				extraJSON = []byte("{}")
			}
			if _, err := stmt.ExecContext(ctx,
				fileID, r.LineNo, r.Description, r.Unit, r.UnitPrice, r.PriceState.String(),
				r.Coefficient, r.TotalPrice, r.SourceFile, r.Category, r.Division, string(extraJSON),
			); err != nil {
				return err
			}
		}
	}

	if len(res.Items) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO priced_items (fileId, lineNo, code, description, unit, price, sourceFile, category, division)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, it := range res.Items {
			if _, err := stmt.ExecContext(ctx,
				fileID, it.LineNo, it.Code, it.Description, it.Unit, it.Price, it.SourceFile, it.Category, it.Division,
			); err != nil {
				return err
			}
		}
	}

	return nil
}

func (d *DB) FinishRun(ctx context.Context, runID string, batch internal.BatchResult) error {
	accepted := 0
	for _, f := range batch.Files {
		accepted += f.Accepted()
	}
	_, err := d.conn.ExecContext(ctx, `
UPDATE runs SET files = ?, failed = ?, accepted = ?, finishedAt = CURRENT_TIMESTAMP WHERE id = ?
`, len(batch.Files), batch.Failed(), accepted, runID)
	return err
}

// HasFileHash reports whether content with this hash was already stored,
// failed or not. Unreadable files stay skipped until their content changes.
func (d *DB) HasFileHash(ctx context.Context, hash string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM files WHERE hash = ? AND hash != ''`, hash).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, mode, startedAt, finishedAt, files, failed, accepted
FROM runs ORDER BY startedAt DESC, rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Mode, &r.StartedAt, &r.FinishedAt, &r.Files, &r.Failed, &r.Accepted); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) ListFiles(ctx context.Context, runID string) ([]FileRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, runId, name, hash, mode, headerRow, columnsJson, COALESCE(category, ''), COALESCE(diagnostic, ''), accepted, COALESCE(error, '')
FROM files WHERE runId = ? ORDER BY id ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var f FileRow
		var columnsJSON string
		if err := rows.Scan(&f.ID, &f.RunID, &f.Name, &f.Hash, &f.Mode, &f.HeaderRow, &columnsJSON, &f.Category, &f.Diagnostic, &f.Accepted, &f.Error); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(columnsJSON), &f.Columns)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *DB) UpsertPriceList(ctx context.Context, entries []internal.PriceEntry) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO price_list (category, key, id, division, code, description, unit, price, samples, priced, sourcesJson, updatedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(category, key) DO UPDATE SET
  id=excluded.id,
  division=excluded.division,
  code=excluded.code,
  description=excluded.description,
  unit=excluded.unit,
  price=excluded.price,
  samples=excluded.samples,
  priced=excluded.priced,
  sourcesJson=excluded.sourcesJson,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		sourcesJSON, _ := json.Marshal(e.Sources)
		if e.Sources == nil {
			sourcesJSON = []byte("[]")
		}
		if _, err := stmt.ExecContext(ctx,
			e.Category, e.Key, e.ID, e.Division, e.Code, e.Description, e.Unit, e.Price, e.Samples, e.Priced, string(sourcesJSON),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListPriceList returns the stored price list, optionally limited to one
// category (case-insensitive).
func (d *DB) ListPriceList(ctx context.Context, category string) ([]internal.PriceEntry, error) {
	query := `
SELECT category, key, id, COALESCE(division, ''), COALESCE(code, ''), description, COALESCE(unit, ''), price, samples, priced, sourcesJson
FROM price_list`
	var args []any
	if strings.TrimSpace(category) != "" {
		query += ` WHERE lower(category) = lower(?)`
		args = append(args, strings.TrimSpace(category))
	}
	query += ` ORDER BY category ASC, key ASC`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PriceEntry
	for rows.Next() {
		var e internal.PriceEntry
		var sourcesJSON string
		if err := rows.Scan(&e.Category, &e.Key, &e.ID, &e.Division, &e.Code, &e.Description, &e.Unit, &e.Price, &e.Samples, &e.Priced, &sourcesJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(sourcesJSON), &e.Sources)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
