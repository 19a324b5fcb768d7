// Package journal keeps a SQLite history of sort sessions and of every file
// they moved or failed to move.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fenilsonani/dlsort/internal/session"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when no session matches an ID
var ErrNotFound = errors.New("session not found")

// Journal is the history database
type Journal struct {
	db   *sql.DB
	path string
}

// SessionRecord is one recorded sort session
type SessionRecord struct {
	ID         string
	Source     string
	State      string
	DryRun     bool
	Total      int
	Completed  int
	Failed     int
	Skipped    int
	Aborted    bool
	Canceled   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the session ran
func (r SessionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// MoveRecord is one file handled by a session. Reason and Error are set
// only for files that were not moved.
type MoveRecord struct {
	Name        string
	Category    string
	Source      string
	Destination string
	Method      string
	Size        int64
	Reason      string
	Error       string
}

// Moved reports whether the file reached its destination
func (m MoveRecord) Moved() bool {
	return m.Error == ""
}

// Open initializes or connects to the journal database and applies migrations
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return j, nil
}

// Path returns the database location
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database connection
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores a finished session report with all of its files
func (j *Journal) Record(ctx context.Context, r *session.Report) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (
            id, source, state, dry_run, total, completed, failed, skipped,
            aborted, canceled, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(),
		r.Source,
		r.State.String(),
		r.DryRun,
		r.Total,
		r.Completed,
		len(r.Errors),
		len(r.Skipped),
		r.Aborted,
		r.Canceled,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO moves (
            session_id, name, category, source, destination, method, size, reason, error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare move insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range r.Moved {
		if _, err := stmt.ExecContext(ctx,
			r.ID.String(), o.Name, o.Category, o.Result.Source,
			o.Result.Destination, string(o.Result.Method), o.Result.Size, nil, nil,
		); err != nil {
			return fmt.Errorf("insert move %s: %w", o.Name, err)
		}
	}
	for _, fe := range r.Errors {
		var original string
		if fe.Err.Original != nil {
			original = fe.Err.Original.Error()
		} else {
			original = fe.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID.String(), fe.Name, fe.Category, fe.Err.Path,
			nullableString(fe.Err.Destination), nil, 0, fe.Err.Reason.String(), original,
		); err != nil {
			return fmt.Errorf("insert failure %s: %w", fe.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first. limit <= 0
// returns all of them.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	query := `SELECT id, source, state, dry_run, total, completed, failed, skipped,
            aborted, canceled, started_at, finished_at
        FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Session returns the session whose ID starts with prefix. An ambiguous
// prefix is an error.
func (j *Journal) Session(ctx context.Context, prefix string) (SessionRecord, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return SessionRecord{}, ErrNotFound
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source, state, dry_run, total, completed, failed, skipped,
            aborted, canceled, started_at, finished_at
        FROM sessions WHERE id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(prefix)+"%")
	if err != nil {
		return SessionRecord{}, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	var found []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return SessionRecord{}, err
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return SessionRecord{}, err
	}

	switch len(found) {
	case 0:
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return SessionRecord{}, fmt.Errorf("session id %q is ambiguous", prefix)
	}
}

// Moves returns the files handled by a session in insertion order
func (j *Journal) Moves(ctx context.Context, sessionID string) ([]MoveRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, category, source, destination, method, size, reason, error
        FROM moves WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	var out []MoveRecord
	for rows.Next() {
		var (
			m                                   MoveRecord
			destination, method, reason, errMsg sql.NullString
		)
		if err := rows.Scan(&m.Name, &m.Category, &m.Source, &destination, &method, &m.Size, &reason, &errMsg); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.Destination = destination.String
		m.Method = method.String
		m.Reason = reason.String
		m.Error = errMsg.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep sessions and returns how many went
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (
            SELECT id FROM sessions ORDER BY started_at DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var (
		rec                 SessionRecord
		startedAt, finished string
	)
	if err := row.Scan(
		&rec.ID, &rec.Source, &rec.State, &rec.DryRun, &rec.Total, &rec.Completed,
		&rec.Failed, &rec.Skipped, &rec.Aborted, &rec.Canceled, &startedAt, &finished,
	); err != nil {
		return SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	rec.StartedAt = parseTime(startedAt)
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}

func (j *Journal) applyMigrations(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	sort.Strings(versions)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range versions {
		version := strings.TrimSuffix(name, ".sql")

		var count int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// timeLayout is fixed width so started_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
