package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"treegrid-cli/internal/savefile"
	"treegrid-cli/internal/tree"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const libraryFile = "library.sqlite"

// Library keeps named trees in a local sqlite database, stored in save-file form
// with their cross links alongside.
type Library struct {
	db *sql.DB
}

type LibraryEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Digest    string    `json:"digest"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type EntryNotFoundError struct {
	Name string
}

func (e EntryNotFoundError) Error() string {
	return fmt.Sprintf("library entry not found: %s", e.Name)
}

// OpenLibrary opens (creating if needed) the library database in dir.
func OpenLibrary(ctx context.Context, dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite registers as "sqlite".
	db, err := sql.Open("sqlite", filepath.Join(dir, libraryFile))
	if err != nil {
		return nil, err
	}
	// WAL lets the TUI read while a CLI process writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateLibrary(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Library{db: db}, nil
}

func migrateLibrary(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trees (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			links TEXT NOT NULL DEFAULT '',
			node_count INTEGER NOT NULL,
			digest TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trees_updated ON trees(updated_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	// Libraries created before links were stored lack the column.
	has, err := hasColumn(ctx, db, "trees", "links")
	if err != nil || has {
		return err
	}
	_, err = db.ExecContext(ctx, `ALTER TABLE trees ADD COLUMN links TEXT NOT NULL DEFAULT ''`)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (l *Library) Close() error { return l.db.Close() }

// Digest is the hex blake3 hash of a tree's save-file form.
func Digest(content string) string {
	return savefile.Digest([]byte(content))
}

// Put stores t under name, replacing any previous tree with that name. The
// returned bool is false when the stored content was already identical.
func (l *Library) Put(ctx context.Context, name string, t *tree.Store) (LibraryEntry, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LibraryEntry{}, false, errors.New("library name is empty")
	}
	content := savefile.Serialize(t)
	links := savefile.SerializeLinks(t)
	digest := Digest(content + links)

	prev, err := l.entry(ctx, name)
	var nf EntryNotFoundError
	switch {
	case err == nil && prev.Digest == digest:
		return prev, false, nil
	case err != nil && !errors.As(err, &nf):
		return LibraryEntry{}, false, err
	}

	e := LibraryEntry{
		ID:        prev.ID,
		Name:      name,
		Nodes:     t.Len(),
		Digest:    digest,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO trees(id, name, content, links, node_count, digest, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			links = excluded.links,
			node_count = excluded.node_count,
			digest = excluded.digest,
			updated_at_unixms = excluded.updated_at_unixms`,
		e.ID, e.Name, content, links, e.Nodes, e.Digest, e.UpdatedAt.UnixMilli())
	if err != nil {
		return LibraryEntry{}, false, err
	}
	return e, true, nil
}

// Get loads the tree stored under name.
func (l *Library) Get(ctx context.Context, name string) (*tree.Store, LibraryEntry, error) {
	e, err := l.entry(ctx, name)
	if err != nil {
		return nil, LibraryEntry{}, err
	}
	var content, links string
	if err := l.db.QueryRowContext(ctx, `SELECT content, links FROM trees WHERE id = ?`, e.ID).Scan(&content, &links); err != nil {
		return nil, LibraryEntry{}, err
	}
	t, err := savefile.Deserialize(content)
	if err == nil {
		err = savefile.ApplyLinks(t, links)
	}
	if err != nil {
		return nil, LibraryEntry{}, fmt.Errorf("library entry %s: %w", name, err)
	}
	return t, e, nil
}

// List returns every entry, most recently updated first.
func (l *Library) List(ctx context.Context) ([]LibraryEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, name, node_count, digest, updated_at_unixms
		FROM trees ORDER BY updated_at_unixms DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LibraryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Library) Delete(ctx context.Context, name string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM trees WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return EntryNotFoundError{Name: name}
	}
	return nil
}

func (l *Library) entry(ctx context.Context, name string) (LibraryEntry, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, name, node_count, digest, updated_at_unixms
		FROM trees WHERE name = ?`, strings.TrimSpace(name))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LibraryEntry{}, EntryNotFoundError{Name: name}
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (LibraryEntry, error) {
	var (
		e  LibraryEntry
		ms int64
	)
	if err := r.Scan(&e.ID, &e.Name, &e.Nodes, &e.Digest, &ms); err != nil {
		return LibraryEntry{}, err
	}
	e.UpdatedAt = time.UnixMilli(ms).UTC()
	return e, nil
}
