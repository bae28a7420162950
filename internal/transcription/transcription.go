package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/types"
)

// MaxAudioBytes is the largest payload the transcription service accepts.
const MaxAudioBytes = 25 << 20

// SupportedFormats are the accepted audio format tags.
var SupportedFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"m4a":  true,
	"flac": true,
	"ogg":  true,
}

var ErrNotConfigured = errors.New("TRANSCRIBE_URL not set")

// ValidateAudio rejects payloads that can never be transcribed, before any
// network call is made.
func ValidateAudio(audio []byte, format string) error {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if !SupportedFormats[format] {
		return &types.FatalInputError{Reason: fmt.Sprintf("unsupported audio format %q", format)}
	}
	if len(audio) == 0 {
		return &types.FatalInputError{Reason: "empty audio payload"}
	}
	if len(audio) > MaxAudioBytes {
		return &types.FatalInputError{Reason: fmt.Sprintf("audio payload is %d bytes, limit is %d", len(audio), MaxAudioBytes)}
	}
	if !headerMatches(audio, format) {
		return &types.FatalInputError{Reason: fmt.Sprintf("payload is not %s audio", format)}
	}
	return nil
}

// headerMatches sniffs the container magic for the declared format.
func headerMatches(b []byte, format string) bool {
	switch format {
	case "wav":
		return len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WAVE"
	case "flac":
		return len(b) >= 4 && string(b[:4]) == "fLaC"
	case "ogg":
		return len(b) >= 4 && string(b[:4]) == "OggS"
	case "m4a":
		return len(b) >= 8 && string(b[4:8]) == "ftyp"
	case "mp3":
		if len(b) >= 3 && string(b[:3]) == "ID3" {
			return true
		}
		return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
	}
	return false
}

type Config struct {
	URL          string
	APIKey       string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
	HTTPClient   *http.Client
	Logger       *logrus.Entry
}

// Client uploads audio to an OpenAI-compatible /audio/transcriptions
// endpoint and asks for a plain text reply.
type Client struct {
	url          string
	apiKey       string
	model        string
	maxRetryTime time.Duration
	http         *http.Client
	log          *logrus.Entry
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 20 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard().Component("transcription")
	}
	return &Client{
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		maxRetryTime: cfg.MaxRetryTime,
		http:         httpClient,
		log:          log,
	}, nil
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) ([]types.Turn, error) {
	if err := ValidateAudio(audio, format); err != nil {
		return nil, err
	}
	body, contentType, err := buildUpload(audio, format, c.model)
	if err != nil {
		return nil, err
	}

	var text string
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("transcription server error %d: %s", resp.StatusCode, string(raw))
			return lastErr
		case resp.StatusCode >= 400:
			// the service could not decode the payload
			lastErr = &types.FatalInputError{Reason: fmt.Sprintf("transcription rejected audio (%d)", resp.StatusCode), Err: errors.New(string(raw))}
			return backoff.Permanent(lastErr)
		}
		text = strings.TrimSpace(string(raw))
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, lastErr
	}

	c.log.WithFields(logrus.Fields{"bytes": len(audio), "format": format, "chars": len(text)}).Info("audio transcribed")
	if text == "" {
		return nil, &types.FatalInputError{Reason: "transcription produced no speech"}
	}
	return types.ParseTurns(text), nil
}

func buildUpload(audio []byte, format, model string) ([]byte, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", "call."+format)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	_ = w.WriteField("model", model)
	_ = w.WriteField("response_format", "text")
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return b.Bytes(), w.FormDataContentType(), nil
}

// Mock validates like the real client and returns a canned conversation.
// Enabled with USE_MOCK_TRANSCRIBE=true.
type Mock struct {
	Text string
}

const mockTranscript = `Agent: Thank you for calling Acme support, this is Sarah. How can I help you today?
Customer: Hi Sarah, I was charged twice for my subscription this month and I would like it fixed.
Agent: I am sorry about that. Let me pull up your account and check the last two invoices.
Customer: Sure, the account is under Daniel Reyes.
Agent: I can see the duplicate charge. I have issued a credit for the second payment, it will show on your next statement.
Customer: Great, thank you for sorting that out so quickly.`

func (m Mock) Transcribe(_ context.Context, audio []byte, format string) ([]types.Turn, error) {
	if err := ValidateAudio(audio, format); err != nil {
		return nil, err
	}
	text := m.Text
	if text == "" {
		text = mockTranscript
	}
	return types.ParseTurns(text), nil
}
