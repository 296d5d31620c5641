package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"github.com/guidedforms/FormVoice/internal/models"
)

type fakeGenAI struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestNLUStrategyUsesServiceResponse(t *testing.T) {
	client := &fakeGenAI{response: "jane@example.com"}
	s := NewNLUStrategy(client, &EmailStrategy{})
	got := s.Extract("you can reach me at my work address", emailField())
	if got != "jane@example.com" {
		t.Errorf("expected service value, got %q", got)
	}
	if client.calls != 1 {
		t.Errorf("expected one service call, got %d", client.calls)
	}
}

func TestNLUStrategyFallsBackOnError(t *testing.T) {
	client := &fakeGenAI{err: errors.New("service unavailable")}
	s := NewNLUStrategy(client, &EmailStrategy{})
	got := s.Extract("john at example dot com", emailField())
	if got != "john@example.com" {
		t.Errorf("expected heuristic fallback, got %q", got)
	}
}

func TestNLUStrategyFallsBackOnNone(t *testing.T) {
	client := &fakeGenAI{response: "NONE"}
	s := NewNLUStrategy(client, &PhoneStrategy{})
	f := models.Field{ID: "phone", Label: "Phone", Type: models.FieldTypePhone}
	got := s.Extract("555 123 4567", f)
	if got != "555 123 4567" {
		t.Errorf("expected heuristic fallback, got %q", got)
	}
}
