package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed ledger.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	diagnosticsLimit        = 8 * 1024
)

// Open creates or opens the ledger at path and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY storms between pooled connections.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// RecordProject inserts a project or refreshes its counters and state.
func (s *Store) RecordProject(ctx context.Context, p Project) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("project id required")
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	now := formatTime(time.Now())
	_, err := s.exec(ctx, `INSERT INTO projects (id, created_at, updated_at, scene_count, required_count, total_seconds, state)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            updated_at = excluded.updated_at,
            scene_count = excluded.scene_count,
            required_count = excluded.required_count,
            total_seconds = excluded.total_seconds,
            state = excluded.state`,
		p.ID, formatTime(created), now, p.SceneCount, p.RequiredCount, p.TotalSeconds, p.State)
	if err != nil {
		return fmt.Errorf("record project: %w", err)
	}
	return nil
}

// UpdateProjectState sets the stored lifecycle state of a project.
func (s *Store) UpdateProjectState(ctx context.Context, id, state string) error {
	_, err := s.exec(ctx, `UPDATE projects SET state = ?, updated_at = ? WHERE id = ?`, state, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update project state: %w", err)
	}
	return nil
}

// MarkEvicted stamps the eviction time; attempts are kept.
func (s *Store) MarkEvicted(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	_, err := s.exec(ctx, `UPDATE projects SET evicted_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("mark evicted: %w", err)
	}
	return nil
}

// BeginAttempt opens a running attempt and returns its id.
func (s *Store) BeginAttempt(ctx context.Context, projectID string) (int64, error) {
	res, err := s.exec(ctx, `INSERT INTO attempts (project_id, started_at, state) VALUES (?, ?, ?)`,
		projectID, formatTime(time.Now()), AttemptRunning)
	if err != nil {
		return 0, fmt.Errorf("begin attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// FinishAttempt records the outcome of a running attempt.
func (s *Store) FinishAttempt(ctx context.Context, id int64, out Outcome) error {
	if out.State != AttemptCompleted && out.State != AttemptFailed {
		return fmt.Errorf("finish attempt: invalid state %q", out.State)
	}
	diagnostics := out.Diagnostics
	if len(diagnostics) > diagnosticsLimit {
		diagnostics = diagnostics[len(diagnostics)-diagnosticsLimit:]
	}
	res, err := s.exec(ctx, `UPDATE attempts
        SET finished_at = ?, state = ?, output_path = ?, output_bytes = ?, error_kind = ?,
            error_message = ?, diagnostics = ?, elapsed_ms = ?
        WHERE id = ? AND state = ?`,
		formatTime(time.Now()), out.State, nullableString(out.OutputPath), out.OutputBytes,
		nullableString(out.ErrorKind), nullableString(out.ErrorMessage), nullableString(diagnostics),
		out.Elapsed.Milliseconds(), id, AttemptRunning)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish attempt %d: not running", id)
	}
	return nil
}

// FailInterrupted closes attempts left running by a previous process.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `UPDATE attempts SET state = ?, finished_at = ?, error_kind = 'internal', error_message = ?
        WHERE state = ?`, AttemptFailed, formatTime(time.Now()), InterruptedReason, AttemptRunning)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted attempts: %w", err)
	}
	return res.RowsAffected()
}

const attemptColumns = "id, project_id, started_at, finished_at, state, output_path, output_bytes, error_kind, error_message, diagnostics, elapsed_ms"

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		a                                     Attempt
		started, state                        string
		finished, output, kind, message, diag sql.NullString
		bytes, elapsed                        sql.NullInt64
	)
	if err := scanner.Scan(&a.ID, &a.ProjectID, &started, &finished, &state, &output, &bytes, &kind, &message, &diag, &elapsed); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		a.FinishedAt = &t
	}
	a.State = AttemptState(state)
	a.OutputPath = output.String
	a.OutputBytes = bytes.Int64
	a.ErrorKind = kind.String
	a.ErrorMessage = message.String
	a.Diagnostics = diag.String
	a.Elapsed = time.Duration(elapsed.Int64) * time.Millisecond
	return a, nil
}

// ListAttempts returns the newest attempts first. An empty projectID lists
// every project; limit <= 0 means 50.
func (s *Store) ListAttempts(ctx context.Context, projectID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + attemptColumns + ` FROM attempts`
	args := []any{}
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetProject loads a ledger project; the boolean is false when absent.
func (s *Store) GetProject(ctx context.Context, id string) (Project, bool, error) {
	var (
		p       Project
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at, scene_count, required_count, total_seconds, state FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &created, &p.SceneCount, &p.RequiredCount, &p.TotalSeconds, &p.State)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, false, nil
	}
	if err != nil {
		return Project{}, false, fmt.Errorf("get project: %w", err)
	}
	p.CreatedAt = parseTime(created)
	return p, true, nil
}

// Summarize counts projects and attempts by state.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects`).Scan(&sum.Projects); err != nil {
		return Summary{}, fmt.Errorf("count projects: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM attempts GROUP BY state`)
	if err != nil {
		return Summary{}, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return Summary{}, fmt.Errorf("scan attempt count: %w", err)
		}
		sum.Attempts += count
		switch AttemptState(state) {
		case AttemptRunning:
			sum.Running = count
		case AttemptCompleted:
			sum.Completed = count
		case AttemptFailed:
			sum.Failed = count
		}
	}
	return sum, rows.Err()
}
