// Package api provides HTTP handlers and the main API server logic for
// FormVoice.
//
// It exposes RESTful endpoints for creating guided form sessions, feeding
// dialogue events into them, and fetching drafts, summaries, and
// submissions, plus a websocket stream that relays chat messages and
// interim recognition transcripts.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/guidedforms/FormVoice/internal/dialogue"
	"github.com/guidedforms/FormVoice/internal/draft"
	"github.com/guidedforms/FormVoice/internal/extract"
	"github.com/guidedforms/FormVoice/internal/genai"
	"github.com/guidedforms/FormVoice/internal/i18n"
	"github.com/guidedforms/FormVoice/internal/scheduler"
	"github.com/guidedforms/FormVoice/internal/speech"
	"github.com/guidedforms/FormVoice/internal/store"
)

// DefaultAddr is the address the API server listens on when none is
// configured.
const DefaultAddr = ":8080"

// RecognizerFactory builds a host speech recognizer for one session.
// A nil factory (or a factory error) leaves the session text-only.
type RecognizerFactory func() (speech.Recognizer, error)

// Opts holds configuration for the API server.
type Opts struct {
	Addr            string
	DefaultLanguage i18n.Language
	Recognizer      RecognizerFactory
	DraftRetention  time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDefaultLanguage sets the language used when a session request does
// not name one.
func WithDefaultLanguage(lang i18n.Language) Option {
	return func(o *Opts) { o.DefaultLanguage = lang }
}

// WithRecognizerFactory enables host speech recognition for new sessions.
func WithRecognizerFactory(f RecognizerFactory) Option {
	return func(o *Opts) { o.Recognizer = f }
}

// WithDraftRetention enables nightly pruning of drafts older than the
// retention window.
func WithDraftRetention(retention time.Duration) Option {
	return func(o *Opts) { o.DraftRetention = retention }
}

// session pairs one dialogue orchestrator with its websocket relay hub.
type session struct {
	orch *dialogue.Orchestrator
	hub  *wsHub
}

// Server hosts the FormVoice HTTP surface and owns the live sessions.
type Server struct {
	addr           string
	store          store.Store
	defaultLang    i18n.Language
	recFactory     RecognizerFactory
	draftRetention time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewServer creates an API server over the given store.
func NewServer(st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = i18n.LanguageEnglish
	}
	slog.Debug("Creating API server", "addr", cfg.Addr, "default_language", cfg.DefaultLanguage, "stt", cfg.Recognizer != nil)
	return &Server{
		addr:           cfg.Addr,
		store:          st,
		defaultLang:    cfg.DefaultLanguage,
		recFactory:     cfg.Recognizer,
		draftRetention: cfg.DraftRetention,
		sessions:       make(map[string]*session),
	}
}

// Run builds the store and optional GenAI extraction from module options
// and serves the API until the listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if len(genaiOpts) > 0 {
		client, err := genai.NewClient(genaiOpts...)
		if err != nil {
			slog.Warn("GenAI client unavailable, keeping heuristic extraction", "error", err)
		} else {
			extract.EnableNLU(client)
			slog.Info("GenAI-backed extraction enabled")
		}
	}

	s := NewServer(st, apiOpts...)
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	if s.draftRetention > 0 {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddDraftPruneJob(scheduler.DefaultPruneSchedule, st, s.draftRetention); err != nil {
			slog.Warn("Failed to schedule draft pruning", "error", err)
		} else {
			slog.Info("Draft pruning scheduled", "schedule", scheduler.DefaultPruneSchedule, "retention", s.draftRetention)
		}
	}

	slog.Info("FormVoice API running", "addr", s.addr)
	if err := http.ListenAndServe(s.addr, s.Handler()); err != nil {
		slog.Error("API server failed", "error", err)
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// buildStore selects a backend from the configured DSN: Postgres for
// PostgreSQL DSNs, SQLite for file paths, in-memory when no DSN is set.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	case store.DetectDSNType(cfg.DSN) == "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", cfg.DSN)
		return store.NewSQLiteStore(storeOpts...)
	}
}

// Handler returns the routing table for the API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /templates", s.saveTemplateHandler)
	mux.HandleFunc("GET /templates/{id}", s.getTemplateHandler)

	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.endSessionHandler)
	mux.HandleFunc("GET /sessions/{id}/stream", s.streamHandler)
	mux.HandleFunc("GET /sessions/{id}/summary", s.summaryHandler)

	mux.HandleFunc("POST /sessions/{id}/messages", s.messageHandler)
	mux.HandleFunc("POST /sessions/{id}/quick-reply", s.quickReplyHandler)
	mux.HandleFunc("POST /sessions/{id}/fields/{fieldID}/click", s.clickFieldHandler)
	mux.HandleFunc("POST /sessions/{id}/fields/{fieldID}/edit", s.editFieldHandler)
	mux.HandleFunc("POST /sessions/{id}/skip", s.skipHandler)
	mux.HandleFunc("POST /sessions/{id}/pause", s.pauseHandler)
	mux.HandleFunc("POST /sessions/{id}/resume", s.resumeHandler)
	mux.HandleFunc("POST /sessions/{id}/voice", s.voiceHandler)
	mux.HandleFunc("POST /sessions/{id}/repeat", s.repeatHandler)
	mux.HandleFunc("POST /sessions/{id}/rephrase", s.rephraseHandler)
	mux.HandleFunc("POST /sessions/{id}/language", s.languageHandler)
	mux.HandleFunc("POST /sessions/{id}/submit", s.submitHandler)

	mux.HandleFunc("GET /submissions/{id}", s.getSubmissionHandler)

	return mux
}

// lookupSession fetches a live session by identifier.
func (s *Server) lookupSession(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// removeSession stops and forgets a live session.
func (s *Server) removeSession(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.orch.Stop()
	sess.hub.Close()
	slog.Debug("Server removed session", "session_id", id)
	return true
}

// newRecognizer builds the per-session recognizer, degrading to text-only
// when the factory is absent or fails.
func (s *Server) newRecognizer() speech.Recognizer {
	if s.recFactory == nil {
		return nil
	}
	rec, err := s.recFactory()
	if err != nil {
		slog.Warn("Server recognizer factory failed, session is text-only", "error", err)
		return nil
	}
	return rec
}

// newSession assembles the per-session dependency graph and starts the
// dialogue.
func (s *Server) newSession(tmplID, profileID string, lang i18n.Language, voice bool, resumeDraftID string) (*session, error) {
	tmpl, err := s.store.GetTemplate(tmplID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", tmplID, err)
	}

	var profile map[string]string
	if profileID != "" {
		profile, err = s.store.GetProfile(profileID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile %s: %w", profileID, err)
		}
	}

	if lang == "" {
		lang = s.defaultLang
	}
	loc := i18n.New(lang)

	opts := []dialogue.Option{
		dialogue.WithTemplate(tmpl),
		dialogue.WithStore(s.store),
		dialogue.WithSpeech(speech.NewManager(nil, s.newRecognizer(), string(loc.Language()))),
		dialogue.WithAutosaver(draft.NewAutosaver(s.store, draft.DefaultDebounce)),
		dialogue.WithLocalizer(loc),
		dialogue.WithVoice(voice),
	}
	if resumeDraftID != "" {
		prior, err := s.store.GetDraft(resumeDraftID)
		if err != nil {
			return nil, fmt.Errorf("failed to load draft %s: %w", resumeDraftID, err)
		}
		opts = append(opts, dialogue.WithResume(prior))
	}

	orch, err := dialogue.NewOrchestrator(opts...)
	if err != nil {
		return nil, err
	}

	hub := newWSHub()
	orch.AddListener(hub)

	sess := &session{orch: orch, hub: hub}
	s.mu.Lock()
	s.sessions[orch.SessionID()] = sess
	s.mu.Unlock()

	orch.Start(profile)
	slog.Info("Server session created", "session_id", orch.SessionID(), "template_id", tmplID, "language", lang, "voice", voice)
	return sess, nil
}
