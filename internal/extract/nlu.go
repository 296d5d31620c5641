// Package extract implements the NLU-backed extraction strategy.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/guidedforms/FormVoice/internal/genai"
	"github.com/guidedforms/FormVoice/internal/models"
)

// nluTimeout bounds one reasoning-service round trip so extraction never
// stalls the dialogue.
const nluTimeout = 6 * time.Second

// NLUStrategy extracts field values through the external reasoning
// service, falling back to the wrapped heuristic strategy on any failure.
// Registering it replaces a heuristic strategy without touching the
// dialogue orchestrator.
type NLUStrategy struct {
	client   genai.ClientInterface
	fallback Strategy
}

// NewNLUStrategy wraps a heuristic fallback strategy with reasoning-service
// extraction.
func NewNLUStrategy(client genai.ClientInterface, fallback Strategy) *NLUStrategy {
	return &NLUStrategy{client: client, fallback: fallback}
}

// Extract implements Strategy.
func (s *NLUStrategy) Extract(utterance string, f models.Field) string {
	ctx, cancel := context.WithTimeout(context.Background(), nluTimeout)
	defer cancel()

	systemPrompt := "You extract one structured value from a conversational answer to a form question. " +
		"Respond with the value only, no explanation. Respond with NONE when no value is present."
	userPrompt := fmt.Sprintf("Question label: %s\nValue type: %s\nAnswer: %s", f.Label, f.Type, utterance)
	if len(f.Options) > 0 {
		var opts []string
		for _, opt := range f.Options {
			opts = append(opts, opt.Value)
		}
		userPrompt += "\nAllowed values: " + strings.Join(opts, ", ")
	}

	response, err := s.client.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
	if err != nil {
		slog.Warn("NLUStrategy falling back to heuristic", "field", f.ID, "error", err)
		return s.fallbackExtract(utterance, f)
	}
	value := strings.TrimSpace(response)
	if value == "" || strings.EqualFold(value, "NONE") {
		return s.fallbackExtract(utterance, f)
	}
	slog.Debug("NLUStrategy extracted value", "field", f.ID)
	return value
}

func (s *NLUStrategy) fallbackExtract(utterance string, f models.Field) string {
	if s.fallback == nil {
		return ""
	}
	return s.fallback.Extract(utterance, f)
}

// EnableNLU replaces the heuristic strategies for free-form field types
// with NLU-backed ones wrapping the current registrations.
func EnableNLU(client genai.ClientInterface) {
	for _, ft := range []models.FieldType{
		models.FieldTypeEmail,
		models.FieldTypePhone,
		models.FieldTypeDate,
		models.FieldTypeNumber,
	} {
		prev, _ := Get(ft)
		Register(ft, NewNLUStrategy(client, prev))
	}
	slog.Info("NLU extraction strategies enabled")
}
