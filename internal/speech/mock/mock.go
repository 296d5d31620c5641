// Package mock provides scripted synthesizer and recognizer
// implementations for testing dialogue flows without host speech
// capabilities or real timers.
package mock

import (
	"context"
	"sync"

	"github.com/guidedforms/FormVoice/internal/models"
	"github.com/guidedforms/FormVoice/internal/speech"
)

// Synthesizer records spoken texts and completes playback synchronously.
type Synthesizer struct {
	mu          sync.Mutex
	spoken      []string
	cancelled   int
	unsupported bool

	// HoldPlayback keeps utterances pending until FinishPlayback is called,
	// simulating in-flight synthesis.
	HoldPlayback bool
	pendingDone  func()
}

// NewSynthesizer creates a mock synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// SetUnsupported makes the synthesizer report synthesis as unavailable.
func (s *Synthesizer) SetUnsupported() {
	s.unsupported = true
}

// Supported implements speech.Synthesizer.
func (s *Synthesizer) Supported() bool {
	return !s.unsupported
}

// Speak implements speech.Synthesizer.
func (s *Synthesizer) Speak(ctx context.Context, text string, onDone func()) (func(), error) {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	hold := s.HoldPlayback
	if hold {
		s.pendingDone = onDone
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		s.cancelled++
		s.pendingDone = nil
		s.mu.Unlock()
	}
	if !hold {
		onDone()
	}
	return cancel, nil
}

// FinishPlayback completes the held utterance, if any.
func (s *Synthesizer) FinishPlayback() {
	s.mu.Lock()
	done := s.pendingDone
	s.pendingDone = nil
	s.mu.Unlock()
	if done != nil {
		done()
	}
}

// Spoken returns all texts spoken so far, in order.
func (s *Synthesizer) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// Cancelled returns how many utterances were cancelled mid-playback.
func (s *Synthesizer) Cancelled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Recognizer delivers recognition results on demand through Emit helpers,
// simulating a continuous host recognizer.
type Recognizer struct {
	mu          sync.Mutex
	started     int
	stopped     int
	active      bool
	lang        string
	unsupported bool
	onResult    speech.ResultFunc
	onError     speech.ErrorFunc
}

// NewRecognizer creates a mock recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// SetUnsupported makes the recognizer report recognition as unavailable.
func (r *Recognizer) SetUnsupported() {
	r.unsupported = true
}

// Supported implements speech.Recognizer.
func (r *Recognizer) Supported() bool {
	return !r.unsupported
}

// Start implements speech.Recognizer.
func (r *Recognizer) Start(ctx context.Context, lang string, onResult speech.ResultFunc, onError speech.ErrorFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.active = true
	r.lang = lang
	r.onResult = onResult
	r.onError = onError
	return nil
}

// Stop implements speech.Recognizer.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	r.active = false
	return nil
}

// EmitInterim delivers an interim (advisory) recognition result.
func (r *Recognizer) EmitInterim(transcript string) {
	r.emit(models.SpeechResult{Transcript: transcript, Confidence: 0.5})
}

// EmitFinal delivers the terminal recognition result for an utterance. The
// recognizer deactivates itself afterwards, matching host behavior.
func (r *Recognizer) EmitFinal(transcript string, confidence float64) {
	r.emit(models.SpeechResult{Transcript: transcript, Confidence: confidence, IsFinal: true})
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
}

func (r *Recognizer) emit(res models.SpeechResult) {
	r.mu.Lock()
	cb := r.onResult
	r.mu.Unlock()
	if cb != nil {
		cb(res)
	}
}

// EmitError delivers a recognition error.
func (r *Recognizer) EmitError(err error) {
	r.mu.Lock()
	cb := r.onError
	r.active = false
	r.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Active reports whether recognition is currently running.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Starts returns how many times recognition was started.
func (r *Recognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Language returns the language passed to the last Start call.
func (r *Recognizer) Language() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lang
}
