// Package google provides a Google Cloud Speech-to-Text recognizer for
// voice-capable server deployments.
//
// Requires the GOOGLE_APPLICATION_CREDENTIALS environment variable.
package google

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/guidedforms/FormVoice/internal/models"
	"github.com/guidedforms/FormVoice/internal/speech"
)

// Default streaming recognition parameters.
const (
	DefaultSampleRateHertz = 16000
	maxAlternatives        = 3
)

// Recognizer implements speech.Recognizer over a Google streaming
// recognition session. The host pushes audio through SendAudio.
type Recognizer struct {
	client *gspeech.Client

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	active bool
}

// New creates a Google recognizer.
func New(ctx context.Context) (*Recognizer, error) {
	c, err := gspeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Recognizer{client: c}, nil
}

// Supported implements speech.Recognizer.
func (r *Recognizer) Supported() bool {
	return r.client != nil
}

// Start implements speech.Recognizer: it opens a streaming session with
// interim results enabled and relays transcript events until the stream
// ends or Stop is called.
func (r *Recognizer) Start(ctx context.Context, lang string, onResult speech.ResultFunc, onError speech.ErrorFunc) error {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return err
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: DefaultSampleRateHertz,
					LanguageCode:    languageCode(lang),
					MaxAlternatives: maxAlternatives,
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		cancel()
		return err
	}

	r.mu.Lock()
	r.stream = stream
	r.cancel = cancel
	r.active = true
	r.mu.Unlock()

	go r.listen(stream, onResult, onError)
	slog.Debug("Google recognizer started", "lang", lang)
	return nil
}

// listen receives transcript responses and relays them as SpeechResults.
func (r *Recognizer) listen(stream speechpb.Speech_StreamingRecognizeClient, onResult speech.ResultFunc, onError speech.ErrorFunc) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			r.mu.Lock()
			wasActive := r.active
			r.active = false
			r.mu.Unlock()
			if !wasActive || errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, context.Canceled) {
				onError(speech.ErrAborted)
				return
			}
			onError(err)
			return
		}
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			top := result.Alternatives[0]
			var alternatives []string
			for _, alt := range result.Alternatives[1:] {
				alternatives = append(alternatives, alt.Transcript)
			}
			onResult(models.SpeechResult{
				Transcript:   top.Transcript,
				Confidence:   float64(top.Confidence),
				IsFinal:      result.IsFinal,
				Alternatives: alternatives,
			})
			if result.IsFinal {
				r.mu.Lock()
				r.active = false
				r.mu.Unlock()
				return
			}
		}
	}
}

// SendAudio pushes LINEAR16 audio bytes into the active session.
func (r *Recognizer) SendAudio(audio []byte) error {
	r.mu.Lock()
	stream := r.stream
	active := r.active
	r.mu.Unlock()
	if !active || stream == nil {
		return errors.New("no active recognition session")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Stop implements speech.Recognizer.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	stream := r.stream
	cancel := r.cancel
	r.active = false
	r.stream = nil
	r.cancel = nil
	r.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// Close releases the underlying client.
func (r *Recognizer) Close() error {
	if err := r.Stop(); err != nil {
		slog.Warn("Google recognizer stop during close failed", "error", err)
	}
	return r.client.Close()
}

// languageCode widens a bare dialogue language to a BCP-47 code.
func languageCode(lang string) string {
	switch lang {
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "", "en":
		return "en-US"
	default:
		return lang
	}
}
