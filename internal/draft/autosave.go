// Package draft provides the debounced autosaver that persists session
// snapshots through the draft store.
package draft

import (
	"log/slog"
	"sync"
	"time"

	"github.com/guidedforms/FormVoice/internal/models"
)

// DefaultDebounce is the quiet period after the last change before a
// snapshot is written.
const DefaultDebounce = time.Second

// Saver is the subset of the store contract the autosaver needs. The draft
// passed to Upsert carries the identifier remembered from the first save.
type Saver interface {
	UpsertDraft(d models.Draft) (string, error)
}

// Autosaver debounces snapshot writes: every trigger restarts the timer
// and only the latest snapshot is written when it elapses. At most one
// write is in flight; subsequent triggers simply reset the timer.
type Autosaver struct {
	mu       sync.Mutex
	writeMu  sync.Mutex // held for the duration of a store write
	store    Saver
	debounce time.Duration
	timer    *time.Timer
	pending  *models.Draft
	draftID  string
	stopped  bool
}

// NewAutosaver creates an autosaver writing through the given store.
// A non-positive debounce falls back to DefaultDebounce.
func NewAutosaver(store Saver, debounce time.Duration) *Autosaver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Autosaver{store: store, debounce: debounce}
}

// Trigger records the latest snapshot and (re)starts the debounce timer.
func (a *Autosaver) Trigger(snapshot models.Draft) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	snapshot.ID = a.draftID
	a.pending = &snapshot
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.flush)
}

// flush writes the pending snapshot. Persistence failures are logged and
// non-fatal to the in-memory session.
func (a *Autosaver) flush() {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	snapshot := a.pending
	a.pending = nil
	a.timer = nil
	stopped := a.stopped
	a.mu.Unlock()
	if snapshot == nil || stopped {
		return
	}

	id, err := a.store.UpsertDraft(*snapshot)
	if err != nil {
		slog.Error("Autosaver flush failed", "error", err, "template", snapshot.TemplateID)
		return
	}
	a.mu.Lock()
	if a.draftID == "" {
		a.draftID = id
	}
	a.mu.Unlock()
	slog.Debug("Autosaver flushed draft", "draft_id", id)
}

// Flush writes any pending snapshot immediately, cancelling the timer.
func (a *Autosaver) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.flush()
}

// DraftID returns the identifier remembered from the first successful
// save, or "" when nothing has been persisted yet.
func (a *Autosaver) DraftID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draftID
}

// Stop cancels any pending write, waits for an in-flight write to finish,
// and stops the autosaver permanently. Once Stop returns no further draft
// writes will happen, so the caller may safely delete the persisted draft.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	// A debounce timer may already have fired and be mid-write in the
	// store. Taking the write lock drains it.
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
}
