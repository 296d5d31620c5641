// Package speech wraps host text-to-speech and speech-to-text capabilities
// behind a uniform speak/listen interface with callback-based results.
//
// The Manager is owned by exactly one dialogue session and torn down with
// it. It guarantees that no stale callback fires after StopListening or
// PauseListening: every start bumps a generation counter and delivery is
// gated on it.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/guidedforms/FormVoice/internal/models"
)

// Sentinel recognition errors that are silently ignored by callers.
var (
	// ErrNoSpeech indicates the recognizer heard nothing before timing out.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrAborted indicates recognition was cancelled by the user or host.
	ErrAborted = errors.New("recognition aborted")
)

// IsIgnorable reports whether a recognition error requires no user-facing
// handling (user-initiated abort or silence).
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted)
}

// ResultFunc receives recognition results. Interim results
// (IsFinal=false) are advisory; the final result terminates the utterance.
type ResultFunc func(models.SpeechResult)

// ErrorFunc receives recognition errors.
type ErrorFunc func(error)

// Synthesizer is the host one-shot utterance synthesis capability.
type Synthesizer interface {
	// Speak begins synthesizing text and invokes onDone exactly once when
	// playback finishes. The returned cancel function stops playback and
	// suppresses onDone.
	Speak(ctx context.Context, text string, onDone func()) (cancel func(), err error)

	// Supported reports whether synthesis is available on this host.
	Supported() bool
}

// Recognizer is the host continuous recognition capability.
type Recognizer interface {
	// Start begins continuous recognition in the given language. onResult
	// may fire many times per utterance; the call carrying IsFinal=true is
	// the terminal one.
	Start(ctx context.Context, lang string, onResult ResultFunc, onError ErrorFunc) error

	// Stop ends the recognition session.
	Stop() error

	// Supported reports whether recognition is available on this host.
	Supported() bool
}

// Manager coordinates one synthesizer and one recognizer for a session.
type Manager struct {
	mu    sync.Mutex
	synth Synthesizer
	rec   Recognizer
	lang  string

	speakGen     uint64
	cancelSpeech func()

	listenGen uint64
	listening bool
	paused    bool
	onResult  ResultFunc
	onError   ErrorFunc
}

// NewManager creates a Manager for one dialogue session. Either capability
// may be nil, in which case the corresponding mode reports unsupported and
// the session degrades to text-only behavior.
func NewManager(synth Synthesizer, rec Recognizer, lang string) *Manager {
	slog.Debug("Creating speech Manager", "lang", lang, "tts", synth != nil && synth.Supported(), "stt", rec != nil && rec.Supported())
	return &Manager{synth: synth, rec: rec, lang: lang}
}

// SetLanguage changes the recognition/synthesis language for future calls.
func (m *Manager) SetLanguage(lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lang = lang
}

// TTSSupported reports whether utterance synthesis is available.
func (m *Manager) TTSSupported() bool {
	return m.synth != nil && m.synth.Supported()
}

// STTSupported reports whether speech recognition is available.
func (m *Manager) STTSupported() bool {
	return m.rec != nil && m.rec.Supported()
}

// Speak cancels any utterance in progress, begins a new one, and invokes
// onDone exactly once when playback finishes. When synthesis is
// unavailable onDone is invoked immediately.
func (m *Manager) Speak(ctx context.Context, text string, onDone func()) {
	m.mu.Lock()
	if m.cancelSpeech != nil {
		m.cancelSpeech()
		m.cancelSpeech = nil
	}
	m.speakGen++
	gen := m.speakGen
	m.mu.Unlock()

	if !m.TTSSupported() {
		slog.Debug("Manager.Speak: synthesis unavailable, completing immediately")
		if onDone != nil {
			onDone()
		}
		return
	}

	done := func() {
		m.mu.Lock()
		stale := gen != m.speakGen
		if !stale {
			m.cancelSpeech = nil
		}
		m.mu.Unlock()
		if stale {
			slog.Debug("Manager.Speak: suppressing stale completion", "gen", gen)
			return
		}
		if onDone != nil {
			onDone()
		}
	}

	cancel, err := m.synth.Speak(ctx, text, done)
	if err != nil {
		slog.Warn("Manager.Speak: synthesis failed, completing immediately", "error", err)
		done()
		return
	}
	m.mu.Lock()
	if gen == m.speakGen {
		m.cancelSpeech = cancel
	} else if cancel != nil {
		// A newer Speak raced us; this utterance is already obsolete.
		cancel()
	}
	m.mu.Unlock()
}

// CancelSpeech synchronously stops any utterance in progress without
// invoking its completion callback.
func (m *Manager) CancelSpeech() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speakGen++
	if m.cancelSpeech != nil {
		m.cancelSpeech()
		m.cancelSpeech = nil
	}
}

// StartListening begins continuous recognition, registering the result and
// error callbacks for the session. The callbacks survive pause/resume and
// are cleared only by StopListening.
func (m *Manager) StartListening(ctx context.Context, onResult ResultFunc, onError ErrorFunc) error {
	if !m.STTSupported() {
		return errors.New("speech recognition not supported")
	}
	m.mu.Lock()
	m.onResult = onResult
	m.onError = onError
	m.listening = true
	m.paused = false
	m.mu.Unlock()
	return m.startRecognizer(ctx)
}

// startRecognizer starts the host recognizer under a fresh generation,
// wrapping the registered callbacks with staleness checks.
func (m *Manager) startRecognizer(ctx context.Context) error {
	m.mu.Lock()
	m.listenGen++
	gen := m.listenGen
	lang := m.lang
	m.mu.Unlock()

	deliver := func(res models.SpeechResult) {
		m.mu.Lock()
		stale := gen != m.listenGen || m.onResult == nil
		cb := m.onResult
		if !stale && res.IsFinal {
			// Recognition stops itself after the terminal result.
			m.listening = false
		}
		m.mu.Unlock()
		if stale {
			slog.Debug("Manager: suppressing stale recognition result", "gen", gen)
			return
		}
		cb(res)
	}
	fail := func(err error) {
		m.mu.Lock()
		stale := gen != m.listenGen || m.onError == nil
		cb := m.onError
		if !stale {
			m.listening = false
		}
		m.mu.Unlock()
		if stale {
			slog.Debug("Manager: suppressing stale recognition error", "gen", gen, "error", err)
			return
		}
		cb(err)
	}

	if err := m.rec.Start(ctx, lang, deliver, fail); err != nil {
		slog.Error("Manager: recognizer start failed", "error", err)
		m.mu.Lock()
		m.listening = false
		m.mu.Unlock()
		return err
	}
	slog.Debug("Manager: listening started", "lang", lang, "gen", gen)
	return nil
}

// PauseListening stops the underlying recognizer while preserving the
// registered callbacks so ResumeListening can restart recognition with
// identical handlers.
func (m *Manager) PauseListening() {
	m.mu.Lock()
	if !m.listening && !m.paused {
		m.mu.Unlock()
		return
	}
	m.listenGen++
	m.listening = false
	m.paused = true
	m.mu.Unlock()
	if err := m.rec.Stop(); err != nil {
		slog.Warn("Manager.PauseListening: recognizer stop failed", "error", err)
	}
	slog.Debug("Manager: listening paused")
}

// ResumeListening restarts recognition with the callbacks registered by the
// original StartListening call.
func (m *Manager) ResumeListening(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused || m.onResult == nil {
		m.mu.Unlock()
		return errors.New("no paused listening session to resume")
	}
	m.paused = false
	m.listening = true
	m.mu.Unlock()
	return m.startRecognizer(ctx)
}

// StopListening hard-stops recognition and clears the registered callbacks.
// No callback registered before this call will fire afterwards.
func (m *Manager) StopListening() {
	m.mu.Lock()
	wasActive := m.listening || m.paused
	m.listenGen++
	m.listening = false
	m.paused = false
	m.onResult = nil
	m.onError = nil
	m.mu.Unlock()
	if wasActive && m.rec != nil {
		if err := m.rec.Stop(); err != nil {
			slog.Warn("Manager.StopListening: recognizer stop failed", "error", err)
		}
	}
	slog.Debug("Manager: listening stopped")
}

// Listening reports whether the recognizer is currently active.
func (m *Manager) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Paused reports whether a listening session is suspended.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}
