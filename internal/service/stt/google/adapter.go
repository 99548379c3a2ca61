// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-caption-service/internal/service/stt"
)

// Config holds Google Speech-to-Text settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	// ConnectTimeout bounds the retries spent creating the client.
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		ConnectTimeout: 30 * time.Second,
	}
}

// parseAudioEncoding maps an encoding name to the API enum, defaulting to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// responseStream is the receive half of a streaming recognize call.
type responseStream interface {
	Recv() (*speechpb.StreamingRecognizeResponse, error)
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	cfg    Config
	client *speech.Client
	logger zerolog.Logger

	mu         sync.Mutex
	stream     speechpb.Speech_StreamingRecognizeClient
	cancel     context.CancelFunc
	cb         stt.Callback
	transcript stt.Transcript
	closed     bool
}

// New creates a new Google STT adapter, retrying client creation with
// exponential backoff. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var client *speech.Client

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = DefaultConfig().ConnectTimeout
	}

	connect := func() error {
		c, err := speech.NewClient(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Speech client creation failed, retrying")
			return err
		}
		client = c
		return nil
	}
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	return &Adapter{
		cfg:    cfg,
		client: client,
		logger: log.Logger.With().Str("component", "stt").Str("provider", "google").Logger(),
	}, nil
}

// NewFactory returns an stt.Factory creating one Google adapter per session.
func NewFactory(cfg Config) stt.Factory {
	return func(ctx context.Context) (stt.Adapter, error) {
		return New(ctx, cfg)
	}
}

// Start begins a streaming recognition session, sends the initial config and
// starts receiving results in a separate goroutine. The stream lives until
// Close, not until ctx is done.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := a.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("open recognize stream: %w", err)
	}

	a.mu.Lock()
	a.stream = stream
	a.cancel = cancel
	a.cb = cb
	a.mu.Unlock()

	// Streaming config must be the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:            a.cfg.SampleRateHz,
					LanguageCode:               a.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send streaming config: %w", err)
	}

	go a.listen(stream)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream, closed := a.stream, a.closed
	a.mu.Unlock()

	if closed || stream == nil {
		return nil
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session. Results still in flight are dropped.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stream, cancel := a.stream, a.cancel
	a.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
	}
	if cancel != nil {
		cancel()
	}
	if a.client != nil {
		if e := a.client.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// listen receives transcript responses and turns them into deltas until the
// stream ends.
func (a *Adapter) listen(stream responseStream) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			a.finish(err)
			return
		}
		a.handleResponse(resp)
	}
}

func (a *Adapter) handleResponse(resp *speechpb.StreamingRecognizeResponse) {
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]

		var text string
		if r.GetIsFinal() {
			text = a.transcript.Final(alt.GetTranscript())
		} else {
			text = a.transcript.Interim(alt.GetTranscript())
		}
		if text == "" {
			continue
		}
		if cb := a.callback(); cb != nil {
			cb.OnDelta(text)
		}
	}
}

func (a *Adapter) finish(err error) {
	cb := a.callback()
	if cb == nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		cb.OnSessionEnd()
		return
	}
	a.logger.Error().Err(err).Msg("Recognize stream failed")
	cb.OnError(err)
}

// callback returns the active callback, or nil once the adapter is closed.
func (a *Adapter) callback() stt.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.cb
}
