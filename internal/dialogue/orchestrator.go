// Package dialogue implements the state machine that drives a guided form
// session: it decides what to say, when to listen, how to interpret what
// comes back, and when the form is complete.
//
// All transitions are serialized under one mutex; a transition runs to
// completion before the next event is handled. Host speech calls that can
// invoke callbacks synchronously are deferred until the mutex is released,
// so a completion callback re-entering the orchestrator never deadlocks.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/guidedforms/FormVoice/internal/draft"
	"github.com/guidedforms/FormVoice/internal/extract"
	"github.com/guidedforms/FormVoice/internal/form"
	"github.com/guidedforms/FormVoice/internal/i18n"
	"github.com/guidedforms/FormVoice/internal/models"
	"github.com/guidedforms/FormVoice/internal/speech"
	"github.com/guidedforms/FormVoice/internal/summary"
	"github.com/guidedforms/FormVoice/internal/util"
)

// Timing defaults for the delayed transitions of the dialogue.
const (
	// DefaultAdvanceDelay is the pause between an acknowledgement and the
	// next field prompt.
	DefaultAdvanceDelay = 800 * time.Millisecond
	// DefaultRetryDelay is the pause before listening restarts after a
	// recognition error.
	DefaultRetryDelay = 1500 * time.Millisecond
)

// SubmissionStore is the slice of the persistence contract the orchestrator
// touches directly at submit time. Draft writes go through the Autosaver.
type SubmissionStore interface {
	CreateSubmission(s models.Submission) (string, error)
	DeleteDraft(id string) error
}

// Listener observes session activity for relay surfaces such as the live
// transcript websocket. Callbacks fire while the orchestrator lock is held,
// so implementations must not call back into the orchestrator.
type Listener interface {
	// OnChatMessage fires for every appended transcript entry.
	OnChatMessage(msg models.ChatMessage)
	// OnStateChange fires whenever the dialogue state changes.
	OnStateChange(state models.DialogueState)
	// OnInterimTranscript fires for advisory recognition results.
	OnInterimTranscript(transcript string)
	// OnProgress fires whenever completion progress is recomputed.
	OnProgress(p form.Progress)
}

// Opts holds configuration for orchestrator construction.
type Opts struct {
	SessionID    string
	Template     *models.FormTemplate
	Store        SubmissionStore
	Speech       *speech.Manager
	Saver        *draft.Autosaver
	Localizer    *i18n.Localizer
	Timer        Timer
	AdvanceDelay time.Duration
	RetryDelay   time.Duration
	VoiceEnabled bool
	Resume       *models.Draft
}

// Option configures an Orchestrator.
type Option func(*Opts)

// WithSessionID sets the session identifier; a random one is generated
// when unset.
func WithSessionID(id string) Option {
	return func(o *Opts) { o.SessionID = id }
}

// WithTemplate sets the form template the session walks through.
func WithTemplate(t *models.FormTemplate) Option {
	return func(o *Opts) { o.Template = t }
}

// WithStore sets the submission sink and draft deleter.
func WithStore(s SubmissionStore) Option {
	return func(o *Opts) { o.Store = s }
}

// WithSpeech sets the speech I/O manager for the session.
func WithSpeech(m *speech.Manager) Option {
	return func(o *Opts) { o.Speech = m }
}

// WithAutosaver sets the debounced draft writer.
func WithAutosaver(a *draft.Autosaver) Option {
	return func(o *Opts) { o.Saver = a }
}

// WithLocalizer sets the message localizer.
func WithLocalizer(l *i18n.Localizer) Option {
	return func(o *Opts) { o.Localizer = l }
}

// WithTimer sets the delayed-action scheduler; tests pass a manual timer.
func WithTimer(t Timer) Option {
	return func(o *Opts) { o.Timer = t }
}

// WithAdvanceDelay overrides the acknowledgement-to-next-prompt pause.
func WithAdvanceDelay(d time.Duration) Option {
	return func(o *Opts) { o.AdvanceDelay = d }
}

// WithRetryDelay overrides the listening-retry pause after an error.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Opts) { o.RetryDelay = d }
}

// WithVoice sets the initial voice-mode flag.
func WithVoice(enabled bool) Option {
	return func(o *Opts) { o.VoiceEnabled = enabled }
}

// WithResume restores answers, transcript, current field, and skip set from
// a persisted draft.
func WithResume(d *models.Draft) Option {
	return func(o *Opts) { o.Resume = d }
}

// followupKind selects what happens when a spoken prompt finishes playing.
type followupKind int

const (
	followupNone followupKind = iota
	followupListen
	followupAdvance
)

// effect is a deferred action executed after the orchestrator lock is
// released. Host speech calls live here because they may invoke completion
// callbacks synchronously.
type effect func()

// Orchestrator is the per-session dialogue state machine. One instance
// serves exactly one user and one draft; it is torn down with the session.
type Orchestrator struct {
	mu sync.Mutex

	id       string
	template *models.FormTemplate
	answers  models.Answers
	messages []models.ChatMessage
	skipped  models.SkipSet
	progress form.Progress

	state          models.DialogueState
	currentFieldID string
	awaitingReview bool
	guidedDone     bool
	voiceEnabled   bool
	stopped        bool

	lastAssistantText string
	pendingTimers     []string

	loc    *i18n.Localizer
	speech *speech.Manager
	saver  *draft.Autosaver
	store  SubmissionStore
	timer  Timer

	advanceDelay time.Duration
	retryDelay   time.Duration

	listeners []Listener

	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrchestrator creates a dialogue orchestrator for one session.
func NewOrchestrator(opts ...Option) (*Orchestrator, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Template == nil {
		return nil, fmt.Errorf("dialogue: template is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("dialogue: store is required")
	}
	if cfg.Speech == nil {
		return nil, fmt.Errorf("dialogue: speech manager is required")
	}
	if cfg.Saver == nil {
		return nil, fmt.Errorf("dialogue: autosaver is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = util.GenerateSessionID()
	}
	if cfg.Localizer == nil {
		cfg.Localizer = i18n.New(i18n.LanguageEnglish)
	}
	if cfg.Timer == nil {
		cfg.Timer = NewSimpleTimer()
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		id:           cfg.SessionID,
		template:     cfg.Template,
		answers:      make(models.Answers),
		skipped:      models.NewSkipSet(),
		state:        models.StateIdle,
		voiceEnabled: cfg.VoiceEnabled,
		loc:          cfg.Localizer,
		speech:       cfg.Speech,
		saver:        cfg.Saver,
		store:        cfg.Store,
		timer:        cfg.Timer,
		advanceDelay: cfg.AdvanceDelay,
		retryDelay:   cfg.RetryDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
	if cfg.Resume != nil {
		o.answers = cfg.Resume.Answers.Clone()
		o.messages = append(o.messages, cfg.Resume.Messages...)
		o.currentFieldID = cfg.Resume.CurrentFieldID
		if cfg.Resume.Skipped != nil {
			o.skipped = cfg.Resume.Skipped
		}
	}
	o.progress = form.ComputeProgress(o.template, o.answers)
	slog.Debug("Orchestrator created", "session_id", o.id, "template_id", o.template.ID, "voice", o.voiceEnabled)
	return o, nil
}

// SessionID returns the session identifier.
func (o *Orchestrator) SessionID() string {
	return o.id
}

// AddListener registers an activity observer.
func (o *Orchestrator) AddListener(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Start begins the session: pre-populates empty fields from the profile,
// emits the welcome message, and either waits for the user's confirmation
// of pre-filled values or proceeds to the first field after a short delay.
func (o *Orchestrator) Start(profile models.Profile) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	prefilled := extract.Prefill(o.template, o.answers, profile)
	var eff []effect
	if len(prefilled) > 0 {
		args := make([]any, len(prefilled))
		for i, line := range prefilled {
			args[i] = line
		}
		o.awaitingReview = true
		replies := []models.QuickReply{
			{Label: o.loc.Message(i18n.KeyLooksGood), Value: "looks-good"},
			{Label: o.loc.Message(i18n.KeyNeedUpdate), Value: "need-update"},
		}
		eff = o.sayLocked(o.loc.Message(i18n.KeyWelcomePrepopulated, args...), "", replies, followupNone)
	} else {
		eff = o.sayLocked(o.loc.Message(i18n.KeyWelcomeEmpty), "", nil, followupAdvance)
	}
	o.autosaveLocked()
	o.mu.Unlock()
	runAll(eff)
}

// Advance prompts for the next missing required field, or emits the
// completion message when none remains.
func (o *Orchestrator) Advance() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	eff := o.advanceLocked()
	o.mu.Unlock()
	runAll(eff)
}

// HandleUtterance processes one block of typed user input offered as an
// answer to the current field.
func (o *Orchestrator) HandleUtterance(text string) {
	o.processUtterance(text, 0)
}

// HandleQuickReply processes a tap on a quick-reply option.
func (o *Orchestrator) HandleQuickReply(label, value string) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	var eff []effect
	switch {
	case o.awaitingReview:
		// "Looks good" / "need to update" both acknowledge and move on;
		// updates happen through field clicks.
		o.awaitingReview = false
		o.appendUserLocked(label, "", 0)
		eff = o.sayLocked(o.loc.Message(i18n.KeyAcknowledgement), "", nil, followupAdvance)
	default:
		f, ok := o.template.FieldByID(o.currentFieldID)
		if !ok || !f.Type.IsSelect() {
			o.mu.Unlock()
			o.processUtterance(label, 0)
			return
		}
		o.speech.StopListening()
		o.setStateLocked(models.StateThinking)
		o.appendUserLocked(label, f.ID, 0)
		if v, matched := optionValue(f, label, value); matched {
			o.commitLocked(f, v)
			eff = o.sayLocked(o.loc.Message(i18n.KeyAcknowledgement), f.ID, nil, followupAdvance)
		} else {
			eff = o.sayLocked(o.loc.Message(i18n.KeyDidNotCatch), f.ID, nil, followupListen)
		}
	}
	o.autosaveLocked()
	o.mu.Unlock()
	runAll(eff)
}

// EditField commits an extracted value to a field other than the one
// currently being asked, without advancing the traversal.
func (o *Orchestrator) EditField(fieldID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return fmt.Errorf("session %s is stopped", o.id)
	}
	f, ok := o.template.FieldByID(fieldID)
	if !ok {
		return fmt.Errorf("field %s: %w", fieldID, models.ErrUnknownField)
	}
	o.appendUserLocked(text, f.ID, 0)
	raw := extract.Value(text, f)
	if strings.TrimSpace(raw) != "" {
		o.commitLocked(f, raw)
	}
	o.autosaveLocked()
	slog.Debug("Orchestrator field edited", "session_id", o.id, "field_id", fieldID)
	return nil
}

// ClickField jumps the dialogue to a specific field regardless of traversal
// order, cancelling any in-progress speech or listening.
func (o *Orchestrator) ClickField(fieldID string) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return fmt.Errorf("session %s is stopped", o.id)
	}
	f, ok := o.template.FieldByID(fieldID)
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("field %s: %w", fieldID, models.ErrUnknownField)
	}
	o.cancelPendingLocked()
	o.speech.CancelSpeech()
	o.speech.StopListening()
	o.currentFieldID = f.ID
	o.awaitingReview = false
	text := o.loc.Message(i18n.KeyFieldHelp, strings.ToLower(f.Label)) + " " + o.fieldPromptLocked(f)
	eff := o.sayLocked(text, f.ID, quickRepliesFor(f), followupListen)
	o.autosaveLocked()
	o.mu.Unlock()
	runAll(eff)
	return nil
}

// Skip defers the current field and moves on. The field stays out of
// automatic traversal until it is re-opened through a direct click.
func (o *Orchestrator) Skip() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	f, ok := o.template.FieldByID(o.currentFieldID)
	if !ok {
		o.mu.Unlock()
		return
	}
	o.skipped.Add(f.ID)
	o.speech.StopListening()
	eff := o.sayLocked(o.loc.Message(i18n.KeySkipConfirmation, strings.ToLower(f.Label)), f.ID, nil, followupAdvance)
	o.autosaveLocked()
	o.mu.Unlock()
	runAll(eff)
}

// Pause suspends listening while preserving the recognition callbacks.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != models.StateListening {
		return
	}
	o.speech.PauseListening()
	o.setStateLocked(models.StatePaused)
}

// Resume restarts a paused listening session with its original callbacks.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	if o.state != models.StatePaused {
		o.mu.Unlock()
		return
	}
	o.setStateLocked(models.StateListening)
	eff := []effect{func() {
		if err := o.speech.ResumeListening(o.ctx); err != nil {
			slog.Warn("Orchestrator resume failed", "error", err, "session_id", o.id)
			o.mu.Lock()
			if o.state == models.StateListening {
				o.setStateLocked(models.StateIdle)
			}
			o.mu.Unlock()
		}
	}}
	o.mu.Unlock()
	runAll(eff)
}

// SetVoiceEnabled toggles voice mode. Off cancels speech and listening and
// forces idle; on with a pending field re-enters listening after a delay.
func (o *Orchestrator) SetVoiceEnabled(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.voiceEnabled = enabled
	if !enabled {
		o.cancelPendingLocked()
		o.speech.CancelSpeech()
		o.speech.StopListening()
		o.setStateLocked(models.StateIdle)
		slog.Debug("Orchestrator voice disabled", "session_id", o.id)
		return
	}
	if o.currentFieldID != "" && o.speech.STTSupported() {
		o.scheduleLocked(o.advanceDelay, o.beginListening)
	}
	slog.Debug("Orchestrator voice enabled", "session_id", o.id, "field_id", o.currentFieldID)
}

// Repeat re-speaks the last assistant message verbatim without changing the
// machine position.
func (o *Orchestrator) Repeat() {
	o.mu.Lock()
	text := o.lastAssistantText
	o.mu.Unlock()
	if text == "" {
		return
	}
	o.speech.Speak(o.ctx, text, nil)
}

// Rephrase speaks a randomly chosen alternate phrasing of the current
// field's prompt without changing the machine position.
func (o *Orchestrator) Rephrase() {
	o.mu.Lock()
	f, ok := o.template.FieldByID(o.currentFieldID)
	if !ok {
		o.mu.Unlock()
		return
	}
	variant := util.Pick(o.loc.RephraseVariants(strings.ToLower(f.Label)))
	o.appendAssistantLocked(variant, f.ID, nil)
	o.autosaveLocked()
	o.mu.Unlock()
	o.speech.Speak(o.ctx, variant, nil)
}

// SetLanguage switches the dialogue language for future prompts. Committed
// answers are untouched and extraction is not rerun.
func (o *Orchestrator) SetLanguage(lang i18n.Language) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loc = i18n.New(lang)
	o.speech.SetLanguage(string(o.loc.Language()))
	slog.Debug("Orchestrator language switched", "session_id", o.id, "language", o.loc.Language())
}

// Submit validates all answers and, when clean, writes the submission and
// deletes the draft. Validation errors block the write; a failed write
// keeps the draft and surfaces a message so the user can retry.
func (o *Orchestrator) Submit() (string, []form.ValidationError, error) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return "", nil, fmt.Errorf("session %s is stopped", o.id)
	}
	errs := form.ValidateAll(o.template, o.answers)
	if len(errs) > 0 {
		slog.Debug("Orchestrator submit blocked by validation", "session_id", o.id, "errors", len(errs))
		o.appendAssistantLocked(o.loc.Message(i18n.KeyValidationErrorCount, len(errs)), "", nil)
		o.autosaveLocked()
		o.mu.Unlock()
		return "", errs, nil
	}
	sub := models.Submission{
		TemplateID: o.template.ID,
		Answers:    o.answers.Clone(),
		Summary:    summary.Render(*o.template, o.answers, o.skipped),
	}
	o.mu.Unlock()

	id, err := o.store.CreateSubmission(sub)
	if err != nil {
		slog.Error("Orchestrator submission failed", "error", err, "session_id", o.id)
		o.mu.Lock()
		o.appendAssistantLocked(o.loc.Message(i18n.KeySubmissionFailed), "", nil)
		o.autosaveLocked()
		o.mu.Unlock()
		return "", nil, fmt.Errorf("failed to create submission: %w", err)
	}

	o.saver.Stop()
	if draftID := o.saver.DraftID(); draftID != "" {
		if err := o.store.DeleteDraft(draftID); err != nil {
			// Submission already exists; a leftover draft is harmless.
			slog.Warn("Orchestrator draft cleanup failed", "error", err, "draft_id", draftID)
		}
	}
	slog.Debug("Orchestrator submission created", "session_id", o.id, "submission_id", id)
	return id, nil, nil
}

// Stop tears the session down: cancels speech, listening, and timers, and
// flushes any pending draft write. No callback fires afterwards.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.cancelPendingLocked()
	o.mu.Unlock()

	o.speech.CancelSpeech()
	o.speech.StopListening()
	o.timer.Stop()
	o.saver.Flush()
	o.saver.Stop()
	o.cancel()
	slog.Debug("Orchestrator stopped", "session_id", o.id)
}

// State returns the current dialogue state.
func (o *Orchestrator) State() models.DialogueState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Progress returns the current completion progress.
func (o *Orchestrator) Progress() form.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// GuidedDone reports whether the guided phase has ended (no missing
// required field remains to prompt for).
func (o *Orchestrator) GuidedDone() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.guidedDone
}

// Snapshot returns the draft-shaped view of the session for the API and
// the autosaver.
func (o *Orchestrator) Snapshot() models.Draft {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// SummaryText renders the section-grouped summary of current answers.
func (o *Orchestrator) SummaryText() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return summary.Render(*o.template, o.answers, o.skipped)
}

// --- internal transitions (o.mu held unless noted) ---

func (o *Orchestrator) processUtterance(text string, confidence float64) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.speech.StopListening()
	o.setStateLocked(models.StateThinking)

	var eff []effect
	if o.awaitingReview {
		// Free text in response to the pre-fill summary counts as review
		// feedback, not an answer.
		o.awaitingReview = false
		o.appendUserLocked(text, "", confidence)
		eff = o.sayLocked(o.loc.Message(i18n.KeyAcknowledgement), "", nil, followupAdvance)
	} else if f, ok := o.template.FieldByID(o.currentFieldID); ok {
		o.appendUserLocked(text, f.ID, confidence)
		raw := extract.Value(text, f)
		if strings.TrimSpace(raw) == "" {
			eff = o.sayLocked(o.loc.Message(i18n.KeyDidNotCatch), f.ID, nil, followupListen)
		} else {
			o.commitLocked(f, raw)
			eff = o.sayLocked(o.loc.Message(i18n.KeyAcknowledgement), f.ID, nil, followupAdvance)
		}
	} else {
		o.appendUserLocked(text, "", confidence)
		o.setStateLocked(models.StateIdle)
	}
	o.autosaveLocked()
	o.mu.Unlock()
	runAll(eff)
}

func (o *Orchestrator) advanceLocked() []effect {
	f, ok := form.NextMissingField(o.template, o.answers, o.currentFieldID, o.skipped)
	if !ok {
		slog.Debug("Orchestrator guided phase complete", "session_id", o.id)
		o.currentFieldID = ""
		o.guidedDone = true
		// Close with a spoken read-back of the collected answers so the
		// user can confirm before submitting.
		text := o.loc.Message(i18n.KeyAllComplete) + " " + summary.RenderSpoken(*o.template, o.answers)
		eff := o.sayLocked(text, "", nil, followupNone)
		o.autosaveLocked()
		return eff
	}
	o.currentFieldID = f.ID
	eff := o.sayLocked(o.fieldPromptLocked(f), f.ID, quickRepliesFor(f), followupListen)
	o.autosaveLocked()
	return eff
}

// fieldPromptLocked returns the localized conversational prompt for a field,
// generating a "What is your <label>?" fallback when none is defined.
func (o *Orchestrator) fieldPromptLocked(f models.Field) string {
	if f.Prompt == "" {
		return o.loc.Message(i18n.KeyAskField, strings.ToLower(f.Label))
	}
	return o.loc.TranslatePrompt(f.Prompt)
}

// sayLocked appends an assistant message and returns the effect that speaks
// it. The followup decides the state entered when playback finishes.
func (o *Orchestrator) sayLocked(text, fieldID string, replies []models.QuickReply, followup followupKind) []effect {
	o.appendAssistantLocked(text, fieldID, replies)
	o.setStateLocked(models.StateSpeaking)
	return []effect{func() {
		o.speech.Speak(o.ctx, text, func() { o.speechFinished(followup) })
	}}
}

// speechFinished runs when a prompt finishes playing (locks o.mu).
func (o *Orchestrator) speechFinished(followup followupKind) {
	o.mu.Lock()
	if o.stopped || o.state != models.StateSpeaking {
		o.mu.Unlock()
		return
	}
	var eff []effect
	switch followup {
	case followupListen:
		if o.voiceEnabled && o.speech.STTSupported() && o.currentFieldID != "" {
			o.setStateLocked(models.StateListening)
			eff = append(eff, o.startListeningEffect())
		} else {
			o.setStateLocked(models.StateIdle)
		}
	case followupAdvance:
		o.setStateLocked(models.StateIdle)
		o.scheduleLocked(o.advanceDelay, o.Advance)
	default:
		o.setStateLocked(models.StateIdle)
	}
	o.mu.Unlock()
	runAll(eff)
}

// beginListening enters the listening state from idle, used by delayed
// voice-toggle and error-retry transitions (locks o.mu).
func (o *Orchestrator) beginListening() {
	o.mu.Lock()
	if o.stopped || !o.voiceEnabled || o.currentFieldID == "" || o.state != models.StateIdle {
		o.mu.Unlock()
		return
	}
	o.setStateLocked(models.StateListening)
	eff := o.startListeningEffect()
	o.mu.Unlock()
	eff()
}

func (o *Orchestrator) startListeningEffect() effect {
	return func() {
		if err := o.speech.StartListening(o.ctx, o.recognitionResult, o.recognitionError); err != nil {
			slog.Error("Orchestrator failed to start listening", "error", err, "session_id", o.id)
			o.mu.Lock()
			if o.state == models.StateListening {
				o.setStateLocked(models.StateIdle)
			}
			o.mu.Unlock()
		}
	}
}

// recognitionResult handles recognizer output (locks o.mu via
// processUtterance for final results).
func (o *Orchestrator) recognitionResult(res models.SpeechResult) {
	if !res.IsFinal {
		o.mu.Lock()
		for _, l := range o.listeners {
			l.OnInterimTranscript(res.Transcript)
		}
		o.mu.Unlock()
		return
	}
	o.processUtterance(res.Transcript, res.Confidence)
}

// recognitionError handles recognizer failures (locks o.mu). No-speech and
// abort are ignored silently; anything else surfaces a message and retries
// listening when voice mode is still on and a field is pending.
func (o *Orchestrator) recognitionError(err error) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	if o.state == models.StateListening || o.state == models.StatePaused {
		o.setStateLocked(models.StateIdle)
	}
	if speech.IsIgnorable(err) {
		slog.Debug("Orchestrator ignoring recognition error", "error", err, "session_id", o.id)
		o.mu.Unlock()
		return
	}
	slog.Warn("Orchestrator recognition error", "error", err, "session_id", o.id)
	o.appendAssistantLocked(o.loc.Message(i18n.KeyDidNotCatch), o.currentFieldID, nil)
	if o.voiceEnabled && o.currentFieldID != "" && o.speech.STTSupported() {
		o.scheduleLocked(o.retryDelay, o.beginListening)
	}
	o.autosaveLocked()
	o.mu.Unlock()
}

// commitLocked stores a raw extracted value under the field's declared
// kind, clears any skip mark, and recomputes progress.
func (o *Orchestrator) commitLocked(f models.Field, raw string) {
	o.answers[f.ID] = models.ValueForField(f, raw)
	o.skipped.Remove(f.ID)
	slog.Debug("Orchestrator answer committed", "session_id", o.id, "field_id", f.ID)
}

func (o *Orchestrator) appendAssistantLocked(text, fieldID string, replies []models.QuickReply) {
	msg := models.ChatMessage{
		ID:           util.GenerateMessageID(),
		Origin:       models.OriginAssistant,
		Text:         text,
		Timestamp:    time.Now(),
		FieldID:      fieldID,
		QuickReplies: replies,
	}
	o.messages = append(o.messages, msg)
	o.lastAssistantText = text
	for _, l := range o.listeners {
		l.OnChatMessage(msg)
	}
}

func (o *Orchestrator) appendUserLocked(text, fieldID string, confidence float64) {
	msg := models.ChatMessage{
		ID:         util.GenerateMessageID(),
		Origin:     models.OriginUser,
		Text:       text,
		Timestamp:  time.Now(),
		FieldID:    fieldID,
		Confidence: confidence,
	}
	o.messages = append(o.messages, msg)
	for _, l := range o.listeners {
		l.OnChatMessage(msg)
	}
}

func (o *Orchestrator) setStateLocked(s models.DialogueState) {
	if o.state == s {
		return
	}
	o.state = s
	for _, l := range o.listeners {
		l.OnStateChange(s)
	}
}

// autosaveLocked recomputes progress and hands a draft snapshot to the
// debounced writer.
func (o *Orchestrator) autosaveLocked() {
	o.progress = form.ComputeProgress(o.template, o.answers)
	for _, l := range o.listeners {
		l.OnProgress(o.progress)
	}
	o.saver.Trigger(o.snapshotLocked())
}

func (o *Orchestrator) snapshotLocked() models.Draft {
	messages := make([]models.ChatMessage, len(o.messages))
	copy(messages, o.messages)
	skipped := models.NewSkipSet()
	for id := range o.skipped {
		skipped.Add(id)
	}
	return models.Draft{
		ID:              o.saver.DraftID(),
		TemplateID:      o.template.ID,
		Answers:         o.answers.Clone(),
		Messages:        messages,
		CurrentFieldID:  o.currentFieldID,
		Skipped:         skipped,
		Progress:        o.progress.Percent,
		MissingRequired: o.progress.MissingRequired,
	}
}

func (o *Orchestrator) scheduleLocked(d time.Duration, fn func()) {
	id, err := o.timer.ScheduleAfter(d, fn)
	if err != nil {
		slog.Error("Orchestrator failed to schedule delayed action", "error", err, "session_id", o.id)
		return
	}
	o.pendingTimers = append(o.pendingTimers, id)
}

func (o *Orchestrator) cancelPendingLocked() {
	for _, id := range o.pendingTimers {
		if err := o.timer.Cancel(id); err != nil {
			slog.Warn("Orchestrator failed to cancel timer", "error", err, "timer_id", id)
		}
	}
	o.pendingTimers = o.pendingTimers[:0]
}

// optionValue resolves a quick-reply tap to an option value,
// case-insensitively matching the reply's value first, then its label.
func optionValue(f models.Field, label, value string) (string, bool) {
	for _, opt := range f.Options {
		if value != "" && strings.EqualFold(opt.Value, value) {
			return opt.Value, true
		}
	}
	for _, opt := range f.Options {
		if strings.EqualFold(opt.Label, label) {
			return opt.Value, true
		}
	}
	return "", false
}

// quickRepliesFor surfaces the first few options of a select field as
// quick replies.
func quickRepliesFor(f models.Field) []models.QuickReply {
	if !f.Type.IsSelect() {
		return nil
	}
	n := len(f.Options)
	if n > models.MaxQuickReplyOptions {
		n = models.MaxQuickReplyOptions
	}
	replies := make([]models.QuickReply, 0, n)
	for _, opt := range f.Options[:n] {
		replies = append(replies, models.QuickReply{Label: opt.Label, Value: opt.Value})
	}
	return replies
}

func runAll(effects []effect) {
	for _, e := range effects {
		e()
	}
}
