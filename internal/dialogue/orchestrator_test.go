package dialogue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidedforms/FormVoice/internal/draft"
	"github.com/guidedforms/FormVoice/internal/form"
	"github.com/guidedforms/FormVoice/internal/i18n"
	"github.com/guidedforms/FormVoice/internal/models"
	"github.com/guidedforms/FormVoice/internal/speech"
	"github.com/guidedforms/FormVoice/internal/speech/mock"
	"github.com/guidedforms/FormVoice/internal/store"
)

// manualTimer records scheduled actions so tests control when delayed
// transitions run.
type manualTimer struct {
	mu      sync.Mutex
	nextID  int
	pending []manualEntry
}

type manualEntry struct {
	id string
	fn func()
}

func newManualTimer() *manualTimer {
	return &manualTimer{}
}

func (t *manualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("manual_%d", t.nextID)
	t.pending = append(t.pending, manualEntry{id: id, fn: fn})
	return id, nil
}

func (t *manualTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.pending {
		if e.id == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
}

// Fire runs the oldest scheduled action, if any.
func (t *manualTimer) Fire() bool {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return false
	}
	e := t.pending[0]
	t.pending = t.pending[1:]
	t.mu.Unlock()
	e.fn()
	return true
}

// FireAll drains scheduled actions, including ones scheduled while firing.
func (t *manualTimer) FireAll() {
	for t.Fire() {
	}
}

func (t *manualTimer) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// recordingListener captures orchestrator activity for assertions.
type recordingListener struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	states   []models.DialogueState
	interims []string
	progress []form.Progress
}

func (l *recordingListener) OnChatMessage(msg models.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingListener) OnStateChange(s models.DialogueState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *recordingListener) OnInterimTranscript(tr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interims = append(l.interims, tr)
}

func (l *recordingListener) OnProgress(p form.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, p)
}

func (l *recordingListener) Interims() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.interims))
	copy(out, l.interims)
	return out
}

type failingSubmissionStore struct {
	*store.InMemoryStore
}

func (f *failingSubmissionStore) CreateSubmission(models.Submission) (string, error) {
	return "", errors.New("sink unavailable")
}

func onboardingTemplate() *models.FormTemplate {
	return &models.FormTemplate{
		ID:    "onboarding",
		Title: "Onboarding",
		Sections: []models.Section{
			{
				ID:    "about-you",
				Title: "About you",
				Fields: []models.Field{
					{ID: "full_name", Label: "Full name", Type: models.FieldTypeShortText, Required: true},
					{ID: "email", Label: "Email", Type: models.FieldTypeEmail, Required: true},
				},
			},
			{
				ID:    "rollout",
				Title: "Rollout",
				Fields: []models.Field{
					{ID: "go_live", Label: "Go-live date", Type: models.FieldTypeDate, Required: true},
				},
			},
		},
	}
}

type harness struct {
	orch  *Orchestrator
	synth *mock.Synthesizer
	rec   *mock.Recognizer
	mem   *store.InMemoryStore
	timer *manualTimer
	saver *draft.Autosaver
	lis   *recordingListener
}

func newHarness(t *testing.T, tmpl *models.FormTemplate, extra ...Option) *harness {
	t.Helper()
	synth := mock.NewSynthesizer()
	rec := mock.NewRecognizer()
	mem := store.NewInMemoryStore()
	timer := newManualTimer()
	saver := draft.NewAutosaver(mem, time.Hour)

	opts := append([]Option{
		WithTemplate(tmpl),
		WithStore(mem),
		WithSpeech(speech.NewManager(synth, rec, "en")),
		WithAutosaver(saver),
		WithTimer(timer),
		WithVoice(true),
	}, extra...)
	orch, err := NewOrchestrator(opts...)
	require.NoError(t, err)

	lis := &recordingListener{}
	orch.AddListener(lis)
	t.Cleanup(orch.Stop)
	return &harness{orch: orch, synth: synth, rec: rec, mem: mem, timer: timer, saver: saver, lis: lis}
}

func TestNewOrchestratorRequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator()
	require.Error(t, err)

	_, err = NewOrchestrator(WithTemplate(onboardingTemplate()))
	require.Error(t, err)
}

func TestGuidedSessionEndToEnd(t *testing.T) {
	h := newHarness(t, onboardingTemplate())

	h.orch.Start(nil)
	// Welcome spoken, advancement waiting on the delay timer.
	spoken := h.synth.Spoken()
	require.NotEmpty(t, spoken)
	assert.Contains(t, spoken[0], "walk you through")

	h.timer.FireAll()
	assert.Equal(t, models.StateListening, h.orch.State())
	assert.Contains(t, h.synth.Spoken(), "What is your full name?")

	h.rec.EmitFinal("John Doe", 0.92)
	h.timer.FireAll()
	assert.Equal(t, models.StateListening, h.orch.State())
	assert.Contains(t, h.synth.Spoken(), "What is your email?")

	h.rec.EmitFinal("my email is john at example dot com", 0.85)
	h.timer.FireAll()
	assert.Contains(t, h.synth.Spoken(), "What is your go-live date?")

	h.rec.EmitFinal("02/01/2024", 0.9)
	h.timer.FireAll()

	snap := h.orch.Snapshot()
	assert.Equal(t, "John Doe", snap.Answers["full_name"].String())
	assert.Equal(t, "john@example.com", snap.Answers["email"].String())
	assert.Equal(t, "02/01/2024", snap.Answers["go_live"].String())

	assert.True(t, h.orch.GuidedDone())
	assert.Equal(t, models.StateIdle, h.orch.State())
	assert.Equal(t, 100, h.orch.Progress().Percent)
	assert.Zero(t, h.orch.Progress().MissingRequired)

	// The closing utterance reads the collected answers back for
	// confirmation before submission.
	last := h.synth.Spoken()[len(h.synth.Spoken())-1]
	assert.Contains(t, last, "everything I needed")
	assert.Contains(t, last, "Here is what I have.")
	assert.Contains(t, last, "Full name: John Doe")
	assert.Contains(t, last, "Email: john@example.com")
}

func TestStartWithPrefillOffersReviewQuickReplies(t *testing.T) {
	h := newHarness(t, onboardingTemplate())

	h.orch.Start(models.Profile{"email": "ada@example.com"})

	snap := h.orch.Snapshot()
	assert.Equal(t, "ada@example.com", snap.Answers["email"].String())
	require.NotEmpty(t, snap.Messages)
	welcome := snap.Messages[0]
	require.Len(t, welcome.QuickReplies, 2)
	assert.Contains(t, welcome.Text, "ada@example.com")

	// No automatic advancement until the user reacts.
	assert.Zero(t, h.timer.PendingCount())

	h.orch.HandleQuickReply("Looks good", "looks-good")
	h.timer.FireAll()

	// Email was pre-filled, so the first prompt targets the name field
	// and the email prompt is never asked.
	assert.Contains(t, h.synth.Spoken(), "What is your full name?")
	assert.NotContains(t, h.synth.Spoken(), "What is your email?")
}

func TestInterimResultsDriveTranscriptOnly(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()
	require.Equal(t, models.StateListening, h.orch.State())

	h.rec.EmitInterim("Jo")
	h.rec.EmitInterim("John D")

	assert.Equal(t, []string{"Jo", "John D"}, h.lis.Interims())
	snap := h.orch.Snapshot()
	assert.False(t, snap.Answers.IsAnswered("full_name"), "interim result must not be committed")
	assert.Equal(t, models.StateListening, h.orch.State())
}

func TestSkipExcludesFieldAndClickReopens(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()

	// Skip the name field; traversal moves to email.
	h.orch.Skip()
	h.timer.FireAll()
	assert.Contains(t, h.synth.Spoken(), "What is your email?")
	assert.True(t, h.orch.Snapshot().Skipped.Contains("full_name"))

	// Answer email and the date; the skipped field never resurfaces.
	h.rec.EmitFinal("jane@example.com", 0.9)
	h.timer.FireAll()
	h.rec.EmitFinal("2024-03-01", 0.9)
	h.timer.FireAll()
	assert.True(t, h.orch.GuidedDone())

	// A direct click re-enters the prompt flow for the skipped field.
	require.NoError(t, h.orch.ClickField("full_name"))
	assert.Equal(t, models.StateListening, h.orch.State())
	joined := strings.Join(h.synth.Spoken(), "\n")
	assert.Contains(t, joined, "Let me help you with full name.")

	h.rec.EmitFinal("Jane Doe", 0.9)
	snap := h.orch.Snapshot()
	assert.Equal(t, "Jane Doe", snap.Answers["full_name"].String())
	assert.False(t, snap.Skipped.Contains("full_name"), "committing clears the skip mark")
}

func TestQuickReplyOnSelectFieldCommitsOptionValue(t *testing.T) {
	tmpl := &models.FormTemplate{
		ID:    "plan-picker",
		Title: "Plan",
		Sections: []models.Section{{
			ID:    "plan",
			Title: "Plan",
			Fields: []models.Field{{
				ID:       "tier",
				Label:    "Plan tier",
				Type:     models.FieldTypeSingleSelect,
				Required: true,
				Options: []models.FieldOption{
					{Value: "starter", Label: "Starter"},
					{Value: "growth", Label: "Growth"},
					{Value: "scale", Label: "Scale"},
					{Value: "enterprise", Label: "Enterprise"},
					{Value: "custom", Label: "Custom"},
				},
			}},
		}},
	}
	h := newHarness(t, tmpl)
	h.orch.Start(nil)
	h.timer.FireAll()

	snap := h.orch.Snapshot()
	var prompt models.ChatMessage
	for _, m := range snap.Messages {
		if m.FieldID == "tier" && m.Origin == models.OriginAssistant {
			prompt = m
		}
	}
	require.Len(t, prompt.QuickReplies, models.MaxQuickReplyOptions, "only the first options become quick replies")

	h.orch.HandleQuickReply("Growth", "growth")
	snap = h.orch.Snapshot()
	assert.Equal(t, "growth", snap.Answers["tier"].String())

	h.timer.FireAll()
	assert.True(t, h.orch.GuidedDone())
}

func TestPauseResumeKeepsRecognitionCallbacks(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()
	require.Equal(t, models.StateListening, h.orch.State())

	h.orch.Pause()
	assert.Equal(t, models.StatePaused, h.orch.State())
	assert.False(t, h.rec.Active())

	h.orch.Resume()
	assert.Equal(t, models.StateListening, h.orch.State())
	assert.True(t, h.rec.Active())

	// The resumed session still delivers answers to the original handler.
	h.rec.EmitFinal("John Doe", 0.9)
	assert.Equal(t, "John Doe", h.orch.Snapshot().Answers["full_name"].String())
}

func TestVoiceToggleOffForcesIdle(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()
	require.Equal(t, models.StateListening, h.orch.State())

	h.orch.SetVoiceEnabled(false)
	assert.Equal(t, models.StateIdle, h.orch.State())
	assert.False(t, h.rec.Active())

	// Toggling back on re-enters listening after the delay.
	h.orch.SetVoiceEnabled(true)
	h.timer.FireAll()
	assert.Equal(t, models.StateListening, h.orch.State())
}

func TestRecognitionErrorRetriesListening(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()
	require.Equal(t, models.StateListening, h.orch.State())

	h.rec.EmitError(errors.New("network glitch"))
	assert.Equal(t, models.StateIdle, h.orch.State())

	snap := h.orch.Snapshot()
	last := snap.Messages[len(snap.Messages)-1]
	assert.Contains(t, last.Text, "didn't catch")

	h.timer.FireAll()
	assert.Equal(t, models.StateListening, h.orch.State())
}

func TestIgnorableRecognitionErrorIsSilent(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()
	before := len(h.orch.Snapshot().Messages)

	h.rec.EmitError(speech.ErrNoSpeech)
	assert.Equal(t, models.StateIdle, h.orch.State())
	assert.Len(t, h.orch.Snapshot().Messages, before, "no message for a no-speech error")
	assert.Zero(t, h.timer.PendingCount(), "no retry for a no-speech error")
}

func TestRepeatAndRephrase(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()

	before := len(h.synth.Spoken())
	h.orch.Repeat()
	spoken := h.synth.Spoken()
	require.Len(t, spoken, before+1)
	assert.Equal(t, "What is your full name?", spoken[len(spoken)-1])

	h.orch.Rephrase()
	spoken = h.synth.Spoken()
	last := spoken[len(spoken)-1]
	assert.NotEqual(t, "What is your full name?", last)
	assert.Contains(t, last, "full name")
}

func TestTypedUtteranceWorksWithoutVoice(t *testing.T) {
	synthOff := mock.NewSynthesizer()
	synthOff.SetUnsupported()
	recOff := mock.NewRecognizer()
	recOff.SetUnsupported()
	mem := store.NewInMemoryStore()
	timer := newManualTimer()
	saver := draft.NewAutosaver(mem, time.Hour)
	orch, err := NewOrchestrator(
		WithTemplate(onboardingTemplate()),
		WithStore(mem),
		WithSpeech(speech.NewManager(synthOff, recOff, "en")),
		WithAutosaver(saver),
		WithTimer(timer),
		WithVoice(false),
	)
	require.NoError(t, err)
	t.Cleanup(orch.Stop)

	orch.Start(nil)
	timer.FireAll()
	// Unsupported synthesis completes immediately; text-only session sits
	// idle between prompts.
	assert.Equal(t, models.StateIdle, orch.State())

	orch.HandleUtterance("John Doe")
	timer.FireAll()
	orch.HandleUtterance("john at example dot com")
	timer.FireAll()
	orch.HandleUtterance("February 1, 2024")
	timer.FireAll()

	snap := orch.Snapshot()
	assert.Equal(t, "john@example.com", snap.Answers["email"].String())
	assert.True(t, orch.GuidedDone())
	assert.Equal(t, 100, orch.Progress().Percent)
}

func TestSubmitBlockedByValidation(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)

	require.NoError(t, h.orch.EditField("email", "not-an-email"))

	id, errs, err := h.orch.Submit()
	require.NoError(t, err)
	assert.Empty(t, id)
	require.NotEmpty(t, errs)
	fieldIDs := make([]string, 0, len(errs))
	for _, e := range errs {
		fieldIDs = append(fieldIDs, e.FieldID)
	}
	assert.Contains(t, fieldIDs, "email")
}

func TestSubmitCreatesSubmissionAndDeletesDraft(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	require.NoError(t, h.orch.EditField("full_name", "Jane Doe"))
	require.NoError(t, h.orch.EditField("email", "jane@example.com"))
	require.NoError(t, h.orch.EditField("go_live", "2024-03-01"))

	h.saver.Flush()
	draftID := h.saver.DraftID()
	require.NotEmpty(t, draftID)

	id, errs, err := h.orch.Submit()
	require.NoError(t, err)
	require.Empty(t, errs)
	require.NotEmpty(t, id)

	sub, err := h.mem.GetSubmission(id)
	require.NoError(t, err)
	assert.Equal(t, "onboarding", sub.TemplateID)
	assert.Contains(t, sub.Summary, "Full name: Jane Doe")

	_, err = h.mem.GetDraft(draftID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFailedSubmissionKeepsDraft(t *testing.T) {
	mem := store.NewInMemoryStore()
	failing := &failingSubmissionStore{InMemoryStore: mem}
	timer := newManualTimer()
	saver := draft.NewAutosaver(mem, time.Hour)
	orch, err := NewOrchestrator(
		WithTemplate(onboardingTemplate()),
		WithStore(failing),
		WithSpeech(speech.NewManager(mock.NewSynthesizer(), mock.NewRecognizer(), "en")),
		WithAutosaver(saver),
		WithTimer(timer),
	)
	require.NoError(t, err)
	t.Cleanup(orch.Stop)

	orch.Start(nil)
	require.NoError(t, orch.EditField("full_name", "Jane Doe"))
	require.NoError(t, orch.EditField("email", "jane@example.com"))
	require.NoError(t, orch.EditField("go_live", "2024-03-01"))
	saver.Flush()
	draftID := saver.DraftID()
	require.NotEmpty(t, draftID)

	_, errs, err := orch.Submit()
	require.Error(t, err)
	assert.Empty(t, errs)

	// Draft survives and the user sees a retry message.
	_, getErr := mem.GetDraft(draftID)
	require.NoError(t, getErr)
	snap := orch.Snapshot()
	last := snap.Messages[len(snap.Messages)-1]
	assert.Contains(t, last.Text, "try again")
}

func TestLanguageSwitchAffectsFuturePromptsOnly(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()

	h.rec.EmitFinal("John Doe", 0.9)
	h.orch.SetLanguage(i18n.LanguageSpanish)
	h.timer.FireAll()

	assert.Equal(t, "John Doe", h.orch.Snapshot().Answers["full_name"].String())
	assert.Contains(t, h.synth.Spoken(), "¿Cuál es tu email?")
}

func TestResumeFromDraftRestoresSessionState(t *testing.T) {
	skipped := models.NewSkipSet()
	skipped.Add("go_live")
	prior := &models.Draft{
		TemplateID:     "onboarding",
		Answers:        models.Answers{"full_name": models.TextValue("Jane Doe")},
		CurrentFieldID: "full_name",
		Skipped:        skipped,
	}
	h := newHarness(t, onboardingTemplate(), WithResume(prior))

	snap := h.orch.Snapshot()
	assert.Equal(t, "Jane Doe", snap.Answers["full_name"].String())
	assert.True(t, snap.Skipped.Contains("go_live"))

	// Advancement continues after the restored position: email is next,
	// and the skipped date field stays excluded.
	h.orch.Advance()
	assert.Contains(t, h.synth.Spoken(), "What is your email?")
	h.rec.EmitFinal("jane@example.com", 0.9)
	h.timer.FireAll()
	assert.True(t, h.orch.GuidedDone())
}

func TestFieldOperationsOnUnknownFieldReturnSentinel(t *testing.T) {
	h := newHarness(t, onboardingTemplate())
	h.orch.Start(nil)
	h.timer.FireAll()

	err := h.orch.EditField("no_such_field", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownField))

	err = h.orch.ClickField("no_such_field")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownField))
}
