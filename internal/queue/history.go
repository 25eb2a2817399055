package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"loom/internal/workflows"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current archive schema version. Bump this when the
// schema changes; the archive is disposable, so mismatches ask the user to
// delete the database rather than migrate.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// History archives terminal tasks in SQLite. The live registry is in-memory
// only; this store exists so finished generations survive daemon restarts.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory initializes or connects to the history database at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &History{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Path reports the database file location.
func (h *History) Path() string {
	return h.path
}

func (h *History) initSchema(ctx context.Context) error {
	var tableExists int
	err := h.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return h.createSchema(ctx)
	}

	var version int
	err = h.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, h.path)
	}
	return nil
}

func (h *History) createSchema(ctx context.Context) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record archives one terminal task. Re-recording the same task id replaces
// the previous row.
func (h *History) Record(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("history record: nil task")
	}
	if !task.Status.IsTerminal() {
		return fmt.Errorf("history record: task %s has non-terminal status %s", task.ID, task.Status)
	}
	configJSON, err := encodeConfig(task.Config)
	if err != nil {
		return fmt.Errorf("history record: %w", err)
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO task_history
			(id, task_type, status, config, description, prompt_id, generated_file_path,
			 error_message, created_at, submitted_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		string(task.Type),
		string(task.Status),
		configJSON,
		task.Description,
		task.PromptID,
		task.GeneratedFilePath,
		task.ErrorMessage,
		formatTime(task.CreatedAt),
		formatTimePtr(task.SubmittedAt),
		formatTimePtr(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("history record: %w", err)
	}
	return nil
}

// List returns archived tasks newest first, up to limit (0 means no limit).
func (h *History) List(ctx context.Context, limit int) ([]*Task, error) {
	query := `
		SELECT id, task_type, status, config, description, prompt_id,
		       generated_file_path, error_message, created_at, submitted_at, completed_at
		FROM task_history
		ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanHistoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("history list: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	return tasks, nil
}

// Prune deletes archived tasks older than the cutoff and returns the number
// removed.
func (h *History) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx,
		"DELETE FROM task_history WHERE created_at < ?", formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("history prune: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history prune: %w", err)
	}
	return removed, nil
}

func scanHistoryRow(rows *sql.Rows) (*Task, error) {
	var (
		task        Task
		taskType    string
		status      string
		configJSON  string
		createdAt   string
		submittedAt sql.NullString
		completedAt sql.NullString
	)
	if err := rows.Scan(
		&task.ID, &taskType, &status, &configJSON, &task.Description, &task.PromptID,
		&task.GeneratedFilePath, &task.ErrorMessage, &createdAt, &submittedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	parsedType, err := ParseTaskType(taskType)
	if err != nil {
		return nil, err
	}
	parsedStatus, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	task.Type = parsedType
	task.Status = parsedStatus
	if task.Config, err = decodeConfig(parsedType, configJSON); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.SubmittedAt, err = parseTimePtr(submittedAt); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &task, nil
}

func encodeConfig(config any) (string, error) {
	if config == nil {
		return "", nil
	}
	encoded, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(encoded), nil
}

// decodeConfig rebuilds the per-variant request record from its stored JSON,
// keyed by the task type.
func decodeConfig(taskType TaskType, raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	switch taskType {
	case TaskAudio:
		var cfg workflows.AudioConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("decode audio config: %w", err)
		}
		return cfg, nil
	case TaskImage:
		var cfg workflows.ImageConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("decode image config: %w", err)
		}
		return cfg, nil
	case TaskVideo:
		var cfg workflows.VideoConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("decode video config: %w", err)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("decode config: unknown task type %q", taskType)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	parsed, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
