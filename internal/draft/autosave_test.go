package draft

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guidedforms/FormVoice/internal/models"
)

type recordingSaver struct {
	mu     sync.Mutex
	saved  []models.Draft
	nextID string
	err    error
}

func (s *recordingSaver) UpsertDraft(d models.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if d.ID == "" {
		d.ID = s.nextID
	}
	s.saved = append(s.saved, d)
	return d.ID, nil
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *recordingSaver) last() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

func snapshot(field string) models.Draft {
	return models.Draft{
		TemplateID:     "onboarding",
		Answers:        models.Answers{},
		CurrentFieldID: field,
	}
}

func TestAutosaverDebouncesBursts(t *testing.T) {
	saver := &recordingSaver{nextID: "d_1"}
	a := NewAutosaver(saver, 20*time.Millisecond)
	defer a.Stop()

	a.Trigger(snapshot("a"))
	a.Trigger(snapshot("b"))
	a.Trigger(snapshot("c"))

	time.Sleep(60 * time.Millisecond)
	if got := saver.count(); got != 1 {
		t.Fatalf("expected one collapsed write, got %d", got)
	}
	if saver.last().CurrentFieldID != "c" {
		t.Errorf("expected latest snapshot to win, got %q", saver.last().CurrentFieldID)
	}
}

func TestAutosaverRemembersDraftID(t *testing.T) {
	saver := &recordingSaver{nextID: "d_42"}
	a := NewAutosaver(saver, 5*time.Millisecond)
	defer a.Stop()

	a.Trigger(snapshot("a"))
	time.Sleep(30 * time.Millisecond)
	if a.DraftID() != "d_42" {
		t.Fatalf("expected remembered id d_42, got %q", a.DraftID())
	}

	a.Trigger(snapshot("b"))
	time.Sleep(30 * time.Millisecond)
	if got := saver.last().ID; got != "d_42" {
		t.Errorf("subsequent save should reuse the first id, got %q", got)
	}
}

func TestAutosaverFlushWritesImmediately(t *testing.T) {
	saver := &recordingSaver{nextID: "d_1"}
	a := NewAutosaver(saver, time.Hour)
	defer a.Stop()

	a.Trigger(snapshot("a"))
	a.Flush()
	if saver.count() != 1 {
		t.Errorf("expected immediate write on Flush, got %d", saver.count())
	}
	// Flush with nothing pending is a no-op.
	a.Flush()
	if saver.count() != 1 {
		t.Errorf("empty flush wrote anyway: %d", saver.count())
	}
}

func TestAutosaverSaveFailureIsNonFatal(t *testing.T) {
	saver := &recordingSaver{err: errors.New("store down")}
	a := NewAutosaver(saver, 5*time.Millisecond)
	defer a.Stop()

	a.Trigger(snapshot("a"))
	time.Sleep(30 * time.Millisecond)
	if a.DraftID() != "" {
		t.Errorf("failed save must not record an id, got %q", a.DraftID())
	}

	// Session continues; a later save succeeds.
	saver.mu.Lock()
	saver.err = nil
	saver.nextID = "d_7"
	saver.mu.Unlock()
	a.Trigger(snapshot("b"))
	time.Sleep(30 * time.Millisecond)
	if a.DraftID() != "d_7" {
		t.Errorf("expected recovery save to record id, got %q", a.DraftID())
	}
}

func TestAutosaverStopCancelsPending(t *testing.T) {
	saver := &recordingSaver{nextID: "d_1"}
	a := NewAutosaver(saver, 10*time.Millisecond)
	a.Trigger(snapshot("a"))
	a.Stop()
	time.Sleep(40 * time.Millisecond)
	if saver.count() != 0 {
		t.Errorf("write fired after Stop: %d", saver.count())
	}
	a.Trigger(snapshot("b"))
	time.Sleep(40 * time.Millisecond)
	if saver.count() != 0 {
		t.Errorf("trigger after Stop wrote: %d", saver.count())
	}
}

// blockingSaver parks UpsertDraft until released, simulating a slow store
// write in flight when Stop is called.
type blockingSaver struct {
	entered chan struct{}
	release chan struct{}
	inner   recordingSaver
}

func (s *blockingSaver) UpsertDraft(d models.Draft) (string, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.inner.UpsertDraft(d)
}

func TestAutosaverStopWaitsForInFlightWrite(t *testing.T) {
	saver := &blockingSaver{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	saver.inner.nextID = "d_1"
	a := NewAutosaver(saver, time.Millisecond)

	a.Trigger(snapshot("a"))
	select {
	case <-saver.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("debounce flush never reached the store")
	}

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	// The write is still parked inside the store, so Stop must not
	// have returned yet.
	select {
	case <-stopped:
		t.Fatal("Stop returned while a store write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(saver.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the write completed")
	}
	if saver.inner.count() != 1 {
		t.Errorf("expected the in-flight write to complete, got %d", saver.inner.count())
	}
}
