// Package store provides storage backends for FormVoice.
//
// It implements the external read/upsert/delete contract consumed by the
// dialogue engine: form templates and profiles are read-only, drafts are
// upserted by autosave and deleted on submission, and submissions are
// append-only. Backends: in-memory, SQLite, and PostgreSQL.
package store

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guidedforms/FormVoice/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract shared by all backends.
type Store interface {
	// GetTemplate fetches a form template by identifier.
	GetTemplate(id string) (*models.FormTemplate, error)

	// SaveTemplate stores or replaces a form template.
	SaveTemplate(t models.FormTemplate) error

	// GetProfile fetches a flat key/value profile record; returns nil and
	// no error when the profile does not exist.
	GetProfile(id string) (models.Profile, error)

	// SaveProfile stores or replaces a profile record.
	SaveProfile(id string, p models.Profile) error

	// UpsertDraft creates the draft on first save and updates it
	// thereafter, returning its identifier.
	UpsertDraft(d models.Draft) (string, error)

	// GetDraft fetches a draft by identifier.
	GetDraft(id string) (*models.Draft, error)

	// DeleteDraft removes a draft; deleting a missing draft is not an error.
	DeleteDraft(id string) error

	// PruneDrafts removes drafts not updated since the cutoff and reports
	// how many were removed.
	PruneDrafts(cutoff time.Time) (int, error)

	// CreateSubmission appends a final submission record and returns its
	// identifier.
	CreateSubmission(s models.Submission) (string, error)

	// GetSubmission fetches a submission by identifier.
	GetSubmission(id string) (*models.Submission, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets a file path DSN for the SQLite backend.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths and
// anything that is not a PostgreSQL URL or key/value DSN count as SQLite.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded map-backed store used for tests and
// DSN-less development runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	templates   map[string]models.FormTemplate
	profiles    map[string]models.Profile
	drafts      map[string]models.Draft
	submissions map[string]models.Submission
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore")
	return &InMemoryStore{
		templates:   make(map[string]models.FormTemplate),
		profiles:    make(map[string]models.Profile),
		drafts:      make(map[string]models.Draft),
		submissions: make(map[string]models.Submission),
	}
}

// GetTemplate implements Store.
func (s *InMemoryStore) GetTemplate(id string) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// SaveTemplate implements Store.
func (s *InMemoryStore) SaveTemplate(t models.FormTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return nil
}

// GetProfile implements Store.
func (s *InMemoryStore) GetProfile(id string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	out := make(models.Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

// SaveProfile implements Store.
func (s *InMemoryStore) SaveProfile(id string, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = p
	return nil
}

// UpsertDraft implements Store.
func (s *InMemoryStore) UpsertDraft(d models.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if d.ID == "" {
		d.ID = uuid.NewString()
		d.CreatedAt = now
	} else if existing, ok := s.drafts[d.ID]; ok {
		d.CreatedAt = existing.CreatedAt
	} else {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.drafts[d.ID] = d
	slog.Debug("InMemoryStore UpsertDraft succeeded", "draft_id", d.ID)
	return d.ID, nil
}

// GetDraft implements Store.
func (s *InMemoryStore) GetDraft(id string) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// DeleteDraft implements Store.
func (s *InMemoryStore) DeleteDraft(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

// PruneDrafts implements Store.
func (s *InMemoryStore) PruneDrafts(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, d := range s.drafts {
		if d.UpdatedAt.Before(cutoff) {
			delete(s.drafts, id)
			pruned++
		}
	}
	return pruned, nil
}

// CreateSubmission implements Store.
func (s *InMemoryStore) CreateSubmission(sub models.Submission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now()
	s.submissions[sub.ID] = sub
	slog.Debug("InMemoryStore CreateSubmission succeeded", "submission_id", sub.ID)
	return sub.ID, nil
}

// GetSubmission implements Store.
func (s *InMemoryStore) GetSubmission(id string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error {
	return nil
}
