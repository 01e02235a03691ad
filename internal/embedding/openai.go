package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client is an OpenAI-compatible embeddings client. One instance is created
// per pipeline and reused for every call; the remote model load is not our
// cost to pay, so there is no local warmup.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	// dimension is latched on the first successful call; atomic because the
	// server shares one client across concurrent requests.
	dimension atomic.Int64
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding: missing API key")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Dimension returns the dimensionality of the produced vectors, 0 before the
// first successful call.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed sends the whole batch in one request. Transient failures (429, 5xx,
// transport errors) are retried with exponential backoff, honoring
// Retry-After when the server provides one.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqID := uuid.New().String()
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt - 1)):
			}
		}

		vectors, retryAfter, err := c.once(ctx, url, body, reqID)
		if err == nil {
			if len(vectors) > 0 {
				c.dimension.CompareAndSwap(0, int64(len(vectors[0])))
			}
			return vectors, nil
		}
		lastErr = err
		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		if retryAfter > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfter):
			}
		}
		c.logger.Warn("embedding request retrying",
			"req_id", reqID, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("embedding: retries exhausted: %w", lastErr)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) once(ctx context.Context, url string, body []byte, reqID string) ([][]float32, time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, &retryableError{err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &retryableError{err}
	}

	c.logger.Debug("embedding.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(payload),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var retryAfter time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, &retryableError{fmt.Errorf("status %s", resp.Status)}
	}
	if resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("embedding: status %s", resp.Status)
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, 0, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, 0, errors.New("embedding: no embedding returned")
	}

	vectors := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, 0, fmt.Errorf("embedding: out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, 0, fmt.Errorf("embedding: missing vector for input %d", i)
		}
	}
	return vectors, 0, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
