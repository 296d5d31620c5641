// Package models defines chat transcript structures for FormVoice sessions.
package models

import "time"

// MessageOrigin identifies who produced a chat message.
type MessageOrigin string

const (
	// OriginAssistant marks messages produced by the dialogue engine.
	OriginAssistant MessageOrigin = "assistant"
	// OriginUser marks messages produced by the user (typed or spoken).
	OriginUser MessageOrigin = "user"
)

// QuickReply is a pre-defined short response option offered alongside a prompt.
type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChatMessage is one append-only transcript entry. The log is ordered and
// never rewritten for the lifetime of a session.
type ChatMessage struct {
	ID           string        `json:"id"`
	Origin       MessageOrigin `json:"origin"`
	Text         string        `json:"text"`
	Timestamp    time.Time     `json:"timestamp"`
	FieldID      string        `json:"field_id,omitempty"`      // field this message relates to
	QuickReplies []QuickReply  `json:"quick_replies,omitempty"` // options offered with an assistant prompt
	Confidence   float64       `json:"confidence,omitempty"`    // recognition confidence for spoken user input
}
