// Package models defines speech recognition and dialogue state types.
package models

// SpeechResult is one recognition event delivered by the host recognizer.
// Interim results (IsFinal=false) are advisory and drive the live
// transcript display only; the final result terminates the utterance.
type SpeechResult struct {
	Transcript   string   `json:"transcript"`
	Confidence   float64  `json:"confidence"`
	IsFinal      bool     `json:"is_final"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// DialogueState is the single active state of a dialogue session. Exactly
// one value holds at any instant; transitions are serialized.
type DialogueState string

const (
	// StateIdle means nothing is happening (the default).
	StateIdle DialogueState = "idle"
	// StateSpeaking means a prompt is being read aloud.
	StateSpeaking DialogueState = "speaking"
	// StateListening means the microphone is active, awaiting an utterance.
	StateListening DialogueState = "listening"
	// StateThinking means a just-received answer is being processed.
	StateThinking DialogueState = "thinking"
	// StatePaused means listening was deliberately suspended by the user.
	StatePaused DialogueState = "paused"
)
