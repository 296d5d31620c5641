package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidedforms/FormVoice/internal/form"
	"github.com/guidedforms/FormVoice/internal/models"
)

const (
	// wsWriteWait bounds how long a single websocket write may block.
	wsWriteWait = 10 * time.Second
	// wsEventBuffer is the per-client queue depth before events are dropped.
	wsEventBuffer = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEvent is the envelope pushed to stream clients.
type wsEvent struct {
	Type       string                `json:"type"`
	Message    *models.ChatMessage   `json:"message,omitempty"`
	State      models.DialogueState  `json:"state,omitempty"`
	Transcript string                `json:"transcript,omitempty"`
	Progress   *form.Progress        `json:"progress,omitempty"`
}

// wsHub fans dialogue events out to connected websocket clients. Listener
// callbacks fire while the orchestrator holds its lock, so broadcast never
// blocks: each client has a buffered queue and slow clients lose events.
type wsHub struct {
	mu      sync.Mutex
	clients map[chan wsEvent]struct{}
	closed  bool
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[chan wsEvent]struct{})}
}

func (h *wsHub) register() (chan wsEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan wsEvent, wsEventBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *wsHub) unregister(ch chan wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// Close disconnects all stream clients and rejects future registrations.
func (h *wsHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *wsHub) broadcast(ev wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Client is not keeping up; drop the event rather than stall
			// the dialogue.
		}
	}
}

// OnChatMessage implements dialogue.Listener.
func (h *wsHub) OnChatMessage(msg models.ChatMessage) {
	h.broadcast(wsEvent{Type: "message", Message: &msg})
}

// OnStateChange implements dialogue.Listener.
func (h *wsHub) OnStateChange(state models.DialogueState) {
	h.broadcast(wsEvent{Type: "state", State: state})
}

// OnInterimTranscript implements dialogue.Listener.
func (h *wsHub) OnInterimTranscript(transcript string) {
	h.broadcast(wsEvent{Type: "interim", Transcript: transcript})
}

// OnProgress implements dialogue.Listener.
func (h *wsHub) OnProgress(p form.Progress) {
	h.broadcast(wsEvent{Type: "progress", Progress: &p})
}

func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	ch, ok := sess.hub.register()
	if !ok {
		writeJSONResponse(w, http.StatusGone, models.Error("Session is closing"))
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.hub.unregister(ch)
		slog.Warn("Server.streamHandler: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer sess.hub.unregister(ch)

	// Drain and discard inbound frames so close/ping control messages are
	// processed and a dropped peer is noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("Server.streamHandler: client write failed", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}
