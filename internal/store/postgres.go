// Package store provides storage backends for FormVoice.
//
// This file implements a PostgreSQL-backed store for templates, profiles,
// drafts, and submissions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/guidedforms/FormVoice/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	slog.Debug("Postgres database opened")

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetTemplate fetches a form template by identifier.
func (s *PostgresStore) GetTemplate(id string) (*models.FormTemplate, error) {
	var spec []byte
	err := s.db.QueryRow(`SELECT spec FROM templates WHERE id = $1`, id).Scan(&spec)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetTemplate not found", "template_id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetTemplate failed", "error", err, "template_id", id)
		return nil, fmt.Errorf("failed to query template %s: %w", id, err)
	}

	var t models.FormTemplate
	if err := json.Unmarshal(spec, &t); err != nil {
		slog.Error("PostgresStore GetTemplate JSON unmarshal failed", "error", err, "template_id", id)
		return nil, fmt.Errorf("failed to decode template %s: %w", id, err)
	}
	slog.Debug("PostgresStore GetTemplate succeeded", "template_id", id)
	return &t, nil
}

// SaveTemplate stores or replaces a form template.
func (s *PostgresStore) SaveTemplate(t models.FormTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	spec, err := json.Marshal(t)
	if err != nil {
		slog.Error("PostgresStore SaveTemplate JSON marshal failed", "error", err, "template_id", t.ID)
		return fmt.Errorf("failed to encode template %s: %w", t.ID, err)
	}
	query := `
		INSERT INTO templates (id, title, spec) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, spec = EXCLUDED.spec`
	if _, err := s.db.Exec(query, t.ID, t.Title, spec); err != nil {
		slog.Error("PostgresStore SaveTemplate failed", "error", err, "template_id", t.ID)
		return fmt.Errorf("failed to upsert template %s: %w", t.ID, err)
	}
	slog.Debug("PostgresStore SaveTemplate succeeded", "template_id", t.ID)
	return nil
}

// GetProfile fetches a profile record; returns nil and no error when missing.
func (s *PostgresStore) GetProfile(id string) (models.Profile, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM profiles WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfile not found", "profile_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "profile_id", id)
		return nil, fmt.Errorf("failed to query profile %s: %w", id, err)
	}

	p := make(models.Profile)
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Error("PostgresStore GetProfile JSON unmarshal failed", "error", err, "profile_id", id)
		return nil, fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	slog.Debug("PostgresStore GetProfile succeeded", "profile_id", id, "keys", len(p))
	return p, nil
}

// SaveProfile stores or replaces a profile record.
func (s *PostgresStore) SaveProfile(id string, p models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("PostgresStore SaveProfile JSON marshal failed", "error", err, "profile_id", id)
		return fmt.Errorf("failed to encode profile %s: %w", id, err)
	}
	query := `
		INSERT INTO profiles (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`
	if _, err := s.db.Exec(query, id, data); err != nil {
		slog.Error("PostgresStore SaveProfile failed", "error", err, "profile_id", id)
		return fmt.Errorf("failed to upsert profile %s: %w", id, err)
	}
	slog.Debug("PostgresStore SaveProfile succeeded", "profile_id", id)
	return nil
}

// UpsertDraft creates the draft on first save and updates it thereafter.
func (s *PostgresStore) UpsertDraft(d models.Draft) (string, error) {
	now := time.Now()
	if d.ID == "" {
		d.ID = uuid.NewString()
		d.CreatedAt = now
	} else {
		var createdAt time.Time
		err := s.db.QueryRow(`SELECT created_at FROM drafts WHERE id = $1`, d.ID).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			d.CreatedAt = now
		case err != nil:
			slog.Error("PostgresStore UpsertDraft lookup failed", "error", err, "draft_id", d.ID)
			return "", fmt.Errorf("failed to look up draft %s: %w", d.ID, err)
		default:
			d.CreatedAt = createdAt
		}
	}
	d.UpdatedAt = now

	payload, err := json.Marshal(d)
	if err != nil {
		slog.Error("PostgresStore UpsertDraft JSON marshal failed", "error", err, "draft_id", d.ID)
		return "", fmt.Errorf("failed to encode draft %s: %w", d.ID, err)
	}

	query := `
		INSERT INTO drafts (id, template_id, payload, progress, missing_required, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			progress = EXCLUDED.progress,
			missing_required = EXCLUDED.missing_required,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, d.ID, d.TemplateID, payload, d.Progress, d.MissingRequired, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertDraft failed", "error", err, "draft_id", d.ID)
		return "", fmt.Errorf("failed to upsert draft %s: %w", d.ID, err)
	}
	slog.Debug("PostgresStore UpsertDraft succeeded", "draft_id", d.ID, "progress", d.Progress)
	return d.ID, nil
}

// GetDraft fetches a draft by identifier.
func (s *PostgresStore) GetDraft(id string) (*models.Draft, error) {
	var payload []byte
	var createdAt, updatedAt time.Time
	err := s.db.QueryRow(`SELECT payload, created_at, updated_at FROM drafts WHERE id = $1`, id).Scan(&payload, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetDraft not found", "draft_id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetDraft failed", "error", err, "draft_id", id)
		return nil, fmt.Errorf("failed to query draft %s: %w", id, err)
	}

	var d models.Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		slog.Error("PostgresStore GetDraft JSON unmarshal failed", "error", err, "draft_id", id)
		return nil, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	d.ID = id
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
	slog.Debug("PostgresStore GetDraft succeeded", "draft_id", id)
	return &d, nil
}

// DeleteDraft removes a draft; deleting a missing draft is not an error.
func (s *PostgresStore) DeleteDraft(id string) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteDraft failed", "error", err, "draft_id", id)
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	slog.Debug("PostgresStore DeleteDraft succeeded", "draft_id", id)
	return nil
}

// PruneDrafts removes drafts not updated since the cutoff.
func (s *PostgresStore) PruneDrafts(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM drafts WHERE updated_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore PruneDrafts failed", "error", err)
		return 0, fmt.Errorf("failed to prune drafts: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned drafts: %w", err)
	}
	slog.Debug("PostgresStore PruneDrafts succeeded", "pruned", pruned)
	return int(pruned), nil
}

// CreateSubmission appends a final submission record.
func (s *PostgresStore) CreateSubmission(sub models.Submission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now()

	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		slog.Error("PostgresStore CreateSubmission JSON marshal failed", "error", err, "submission_id", sub.ID)
		return "", fmt.Errorf("failed to encode submission answers: %w", err)
	}

	query := `INSERT INTO submissions (id, template_id, answers, summary, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = s.db.Exec(query, sub.ID, sub.TemplateID, answers, sub.Summary, sub.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateSubmission failed", "error", err, "submission_id", sub.ID)
		return "", fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("PostgresStore CreateSubmission succeeded", "submission_id", sub.ID, "template_id", sub.TemplateID)
	return sub.ID, nil
}

// GetSubmission fetches a submission by identifier.
func (s *PostgresStore) GetSubmission(id string) (*models.Submission, error) {
	var sub models.Submission
	var answers []byte
	err := s.db.QueryRow(`SELECT id, template_id, answers, summary, created_at FROM submissions WHERE id = $1`, id).Scan(
		&sub.ID, &sub.TemplateID, &answers, &sub.Summary, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSubmission not found", "submission_id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetSubmission failed", "error", err, "submission_id", id)
		return nil, fmt.Errorf("failed to query submission %s: %w", id, err)
	}

	if err := json.Unmarshal(answers, &sub.Answers); err != nil {
		slog.Error("PostgresStore GetSubmission JSON unmarshal failed", "error", err, "submission_id", id)
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	slog.Debug("PostgresStore GetSubmission succeeded", "submission_id", id)
	return &sub, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	} else {
		slog.Debug("Postgres database connection closed successfully")
	}
	return err
}
