// Package paths persists drawn laser paths in SQLite.
package paths

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// DefaultName is used when a path is saved without a name.
const DefaultName = "Untitled Path"

// TimestampLayout is the format of Entry.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrInvalidPoints is returned when points is not a JSON array.
var ErrInvalidPoints = errors.New("points must be a JSON array")

const schema = `
	CREATE TABLE IF NOT EXISTS paths (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		points TEXT NOT NULL
	);
`

const (
	queryInsertPath = `INSERT INTO paths (id, name, timestamp, points) VALUES (:id, :name, :timestamp, :points)`
	querySelectPath = `SELECT id, name, timestamp, points FROM paths ORDER BY rowid`
)

// Entry is one saved path.
type Entry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Timestamp string          `json:"timestamp"`
	Points    json.RawMessage `json:"points"`
}

type entryDB struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Timestamp string `db:"timestamp"`
	Points    string `db:"points"`
}

// Store is a SQLite-backed path store. It is safe for concurrent use.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Save stores a path. An empty name becomes DefaultName and missing
// points become an empty array.
func (s *Store) Save(ctx context.Context, name string, points json.RawMessage) (Entry, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	points, err := normalizePoints(points)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:        ulid.Make().String(),
		Name:      name,
		Timestamp: s.now().Format(TimestampLayout),
		Points:    points,
	}
	row := entryDB{ID: e.ID, Name: e.Name, Timestamp: e.Timestamp, Points: string(points)}
	if _, err := s.db.NamedExecContext(ctx, queryInsertPath, row); err != nil {
		return Entry{}, fmt.Errorf("insert path: %w", err)
	}
	return e, nil
}

// List returns all paths in the order they were saved.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var rows []entryDB
	if err := s.db.SelectContext(ctx, &rows, querySelectPath); err != nil {
		return nil, fmt.Errorf("select paths: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			ID:        r.ID,
			Name:      r.Name,
			Timestamp: r.Timestamp,
			Points:    json.RawMessage(r.Points),
		})
	}
	return entries, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalizePoints(points json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(points)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoints, err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoints, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
