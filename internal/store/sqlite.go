// Package store provides storage backends for FormVoice.
//
// This file implements an SQLite-backed store for templates, profiles,
// drafts, and submissions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/guidedforms/FormVoice/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	slog.Debug("SQLite database opened")

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetTemplate fetches a form template by identifier.
func (s *SQLiteStore) GetTemplate(id string) (*models.FormTemplate, error) {
	var spec string
	err := s.db.QueryRow(`SELECT spec FROM templates WHERE id = ?`, id).Scan(&spec)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetTemplate not found", "template_id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetTemplate failed", "error", err, "template_id", id)
		return nil, fmt.Errorf("failed to query template %s: %w", id, err)
	}

	var t models.FormTemplate
	if err := json.Unmarshal([]byte(spec), &t); err != nil {
		slog.Error("SQLiteStore GetTemplate JSON unmarshal failed", "error", err, "template_id", id)
		return nil, fmt.Errorf("failed to decode template %s: %w", id, err)
	}
	slog.Debug("SQLiteStore GetTemplate succeeded", "template_id", id)
	return &t, nil
}

// SaveTemplate stores or replaces a form template.
func (s *SQLiteStore) SaveTemplate(t models.FormTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	spec, err := json.Marshal(t)
	if err != nil {
		slog.Error("SQLiteStore SaveTemplate JSON marshal failed", "error", err, "template_id", t.ID)
		return fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO templates (id, title, spec) VALUES (?, ?, ?)`, t.ID, t.Title, string(spec))
	if err != nil {
		slog.Error("SQLiteStore SaveTemplate failed", "error", err, "template_id", t.ID)
		return fmt.Errorf("failed to insert template %s: %w", t.ID, err)
	}
	slog.Debug("SQLiteStore SaveTemplate succeeded", "template_id", t.ID)
	return nil
}

// GetProfile fetches a profile record; returns nil and no error when missing.
func (s *SQLiteStore) GetProfile(id string) (models.Profile, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM profiles WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProfile not found", "profile_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfile failed", "error", err, "profile_id", id)
		return nil, fmt.Errorf("failed to query profile %s: %w", id, err)
	}

	p := make(models.Profile)
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		slog.Error("SQLiteStore GetProfile JSON unmarshal failed", "error", err, "profile_id", id)
		return nil, fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	slog.Debug("SQLiteStore GetProfile succeeded", "profile_id", id, "keys", len(p))
	return p, nil
}

// SaveProfile stores or replaces a profile record.
func (s *SQLiteStore) SaveProfile(id string, p models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("SQLiteStore SaveProfile JSON marshal failed", "error", err, "profile_id", id)
		return fmt.Errorf("failed to encode profile %s: %w", id, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO profiles (id, data) VALUES (?, ?)`, id, string(data))
	if err != nil {
		slog.Error("SQLiteStore SaveProfile failed", "error", err, "profile_id", id)
		return fmt.Errorf("failed to insert profile %s: %w", id, err)
	}
	slog.Debug("SQLiteStore SaveProfile succeeded", "profile_id", id)
	return nil
}

// UpsertDraft creates the draft on first save and updates it thereafter.
func (s *SQLiteStore) UpsertDraft(d models.Draft) (string, error) {
	now := time.Now()
	if d.ID == "" {
		d.ID = uuid.NewString()
		d.CreatedAt = now
	} else {
		var createdAt time.Time
		err := s.db.QueryRow(`SELECT created_at FROM drafts WHERE id = ?`, d.ID).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			d.CreatedAt = now
		case err != nil:
			slog.Error("SQLiteStore UpsertDraft lookup failed", "error", err, "draft_id", d.ID)
			return "", fmt.Errorf("failed to look up draft %s: %w", d.ID, err)
		default:
			d.CreatedAt = createdAt
		}
	}
	d.UpdatedAt = now

	payload, err := json.Marshal(d)
	if err != nil {
		slog.Error("SQLiteStore UpsertDraft JSON marshal failed", "error", err, "draft_id", d.ID)
		return "", fmt.Errorf("failed to encode draft %s: %w", d.ID, err)
	}

	query := `
		INSERT OR REPLACE INTO drafts (id, template_id, payload, progress, missing_required, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, d.ID, d.TemplateID, string(payload), d.Progress, d.MissingRequired, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertDraft failed", "error", err, "draft_id", d.ID)
		return "", fmt.Errorf("failed to upsert draft %s: %w", d.ID, err)
	}
	slog.Debug("SQLiteStore UpsertDraft succeeded", "draft_id", d.ID, "progress", d.Progress)
	return d.ID, nil
}

// GetDraft fetches a draft by identifier.
func (s *SQLiteStore) GetDraft(id string) (*models.Draft, error) {
	var payload string
	var createdAt, updatedAt time.Time
	err := s.db.QueryRow(`SELECT payload, created_at, updated_at FROM drafts WHERE id = ?`, id).Scan(&payload, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetDraft not found", "draft_id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetDraft failed", "error", err, "draft_id", id)
		return nil, fmt.Errorf("failed to query draft %s: %w", id, err)
	}

	var d models.Draft
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		slog.Error("SQLiteStore GetDraft JSON unmarshal failed", "error", err, "draft_id", id)
		return nil, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	d.ID = id
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
	slog.Debug("SQLiteStore GetDraft succeeded", "draft_id", id)
	return &d, nil
}

// DeleteDraft removes a draft; deleting a missing draft is not an error.
func (s *SQLiteStore) DeleteDraft(id string) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteDraft failed", "error", err, "draft_id", id)
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	slog.Debug("SQLiteStore DeleteDraft succeeded", "draft_id", id)
	return nil
}

// PruneDrafts removes drafts not updated since the cutoff.
func (s *SQLiteStore) PruneDrafts(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM drafts WHERE updated_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore PruneDrafts failed", "error", err)
		return 0, fmt.Errorf("failed to prune drafts: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned drafts: %w", err)
	}
	slog.Debug("SQLiteStore PruneDrafts succeeded", "pruned", pruned)
	return int(pruned), nil
}

// CreateSubmission appends a final submission record.
func (s *SQLiteStore) CreateSubmission(sub models.Submission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now()

	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		slog.Error("SQLiteStore CreateSubmission JSON marshal failed", "error", err, "submission_id", sub.ID)
		return "", fmt.Errorf("failed to encode submission answers: %w", err)
	}

	query := `INSERT INTO submissions (id, template_id, answers, summary, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, sub.ID, sub.TemplateID, string(answers), sub.Summary, sub.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateSubmission failed", "error", err, "submission_id", sub.ID)
		return "", fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("SQLiteStore CreateSubmission succeeded", "submission_id", sub.ID, "template_id", sub.TemplateID)
	return sub.ID, nil
}

// GetSubmission fetches a submission by identifier.
func (s *SQLiteStore) GetSubmission(id string) (*models.Submission, error) {
	var sub models.Submission
	var answers string
	err := s.db.QueryRow(`SELECT id, template_id, answers, summary, created_at FROM submissions WHERE id = ?`, id).Scan(
		&sub.ID, &sub.TemplateID, &answers, &sub.Summary, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSubmission not found", "submission_id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetSubmission failed", "error", err, "submission_id", id)
		return nil, fmt.Errorf("failed to query submission %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		slog.Error("SQLiteStore GetSubmission JSON unmarshal failed", "error", err, "submission_id", id)
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	slog.Debug("SQLiteStore GetSubmission succeeded", "submission_id", id)
	return &sub, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}
