package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/types"
)

// strictThreshold flags a category score in strict mode even when the
// service did not flag it.
const strictThreshold = 0.1

var ErrNotConfigured = errors.New("moderation endpoint not configured")

type Config struct {
	URL          string
	APIKey       string
	Strict       bool
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
	HTTPClient   *http.Client
	Logger       *logrus.Entry
}

// Client checks text against an OpenAI-compatible moderation endpoint.
type Client struct {
	url          string
	apiKey       string
	strict       bool
	maxRetryTime time.Duration
	http         *http.Client
	log          *logrus.Entry
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
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
		log = logger.Discard().Component("moderation")
	}
	return &Client{
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		strict:       cfg.Strict,
		maxRetryTime: cfg.MaxRetryTime,
		http:         httpClient,
		log:          log,
	}, nil
}

type moderationResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

// Check never returns UNCHECKED: either a verdict or an error.
func (c *Client) Check(ctx context.Context, text string) (types.SafetyVerdict, error) {
	data, err := json.Marshal(map[string]any{"input": text})
	if err != nil {
		return types.SafetyVerdict{}, fmt.Errorf("encode moderation request: %w", err)
	}

	var parsed moderationResponse
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("moderation returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("decode moderation response: %w", err)
			return backoff.Permanent(lastErr)
		}
		if len(parsed.Results) == 0 {
			lastErr = errors.New("moderation response has no results")
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return types.SafetyVerdict{}, lastErr
	}

	verdict := c.verdict(parsed)
	c.log.WithFields(logrus.Fields{
		"status":     verdict.Status,
		"categories": verdict.Categories,
	}).Debug("moderation verdict")
	return verdict, nil
}

func (c *Client) verdict(parsed moderationResponse) types.SafetyVerdict {
	var flagged []string
	for _, r := range parsed.Results {
		for cat, hit := range r.Categories {
			if hit {
				flagged = append(flagged, cat)
			}
		}
		if r.Flagged && len(flagged) == 0 {
			flagged = append(flagged, types.UnknownCategory)
		}
	}
	if c.strict && len(flagged) == 0 {
		for _, r := range parsed.Results {
			for cat, score := range r.CategoryScores {
				if score > strictThreshold {
					flagged = append(flagged, cat+"_warning")
				}
			}
		}
	}
	if len(flagged) == 0 {
		return types.Safe()
	}
	return types.Flagged(flagged...)
}

// defaultKeywords drive the offline mock.
var defaultKeywords = map[string]string{
	"kill":     "violence",
	"shoot":    "violence",
	"bomb":     "violence",
	"idiot":    "harassment",
	"stupid":   "harassment",
	"hate you": "hate",
	"suicide":  "self-harm",
}

// Mock flags text containing any configured keyword. Enabled with
// USE_MOCK_MODERATION=true.
type Mock struct {
	Keywords map[string]string
}

func (m Mock) Check(_ context.Context, text string) (types.SafetyVerdict, error) {
	keywords := m.Keywords
	if keywords == nil {
		keywords = defaultKeywords
	}
	lower := strings.ToLower(text)
	var cats []string
	for kw, cat := range keywords {
		if strings.Contains(lower, kw) {
			cats = append(cats, cat)
		}
	}
	if len(cats) == 0 {
		return types.Safe(), nil
	}
	return types.Flagged(cats...), nil
}
