package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NERConfig configures the token-classification service client.
type NERConfig struct {
	BaseURL        string
	Timeout        time.Duration
	ScoreThreshold float32 // spans below are discarded; default 0.8
	MaxChars       int     // hard input truncation; default 512
}

// NERClient is the model-assisted extractor. It sends a truncated slice of
// the text to an external token-classification service, then supplements the
// model's spans with regex passes over the full text.
type NERClient struct {
	cfg    NERConfig
	client *http.Client
	logger *slog.Logger
}

func NewNERClient(cfg NERConfig, logger *slog.Logger) *NERClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.8
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 512
	}
	return &NERClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type nerSpan struct {
	EntityGroup string  `json:"entity_group"`
	Word        string  `json:"word"`
	Score       float32 `json:"score"`
}

// Extract implements the model-assisted strategy. All eight NER kinds are
// present in the result, possibly empty. Any service failure is returned as
// an error so the caller can fall over to the regex strategy.
func (c *NERClient) Extract(ctx context.Context, text, categoryHint string) (Extraction, error) {
	kinds := make(map[string][]string, len(NERKinds))
	for _, k := range NERKinds {
		kinds[k] = []string{}
	}
	if strings.TrimSpace(text) == "" {
		return Extraction{Source: SourceNER, Kinds: kinds}, nil
	}

	// hard truncation: spans past this boundary are never seen by the model
	input := text
	if len(input) > c.cfg.MaxChars {
		input = input[:c.cfg.MaxChars]
	}

	spans, err := c.classify(ctx, input, categoryHint)
	if err != nil {
		return Extraction{}, err
	}

	for _, span := range spans {
		if span.Score <= c.cfg.ScoreThreshold {
			continue
		}
		word := strings.TrimSpace(span.Word)
		switch strings.ToUpper(span.EntityGroup) {
		case "PER", "PERSON":
			kinds["persons"] = append(kinds["persons"], word)
		case "ORG", "ORGANIZATION":
			kinds["organizations"] = append(kinds["organizations"], word)
		case "LOC", "LOCATION":
			kinds["locations"] = append(kinds["locations"], word)
		case "MISC":
			// crude routing of ambiguous spans
			lower := strings.ToLower(word)
			if strings.Contains(lower, "@") || strings.Contains(lower, "email") {
				kinds["emails"] = append(kinds["emails"], word)
			} else if strings.ContainsAny(word, "0123456789") {
				kinds["dates"] = append(kinds["dates"], word)
			}
		}
	}

	// supplementary regex passes run over the FULL untruncated text
	kinds["emails"] = append(kinds["emails"], reEmailFull.FindAllString(text, -1)...)
	for _, m := range rePhoneParts.FindAllStringSubmatch(text, -1) {
		kinds["phones"] = append(kinds["phones"], m[1]+"-"+m[2]+"-"+m[3])
	}
	kinds["amounts"] = append(kinds["amounts"], reMoneyFull.FindAllString(text, -1)...)

	for k := range kinds {
		kinds[k] = dedupeSet(kinds[k])
	}

	c.logger.Info("ner extraction ok",
		"spans", len(spans),
		"values", Extraction{Kinds: kinds}.ValueCount(),
	)
	return Extraction{Source: SourceNER, Kinds: kinds}, nil
}

func (c *NERClient) classify(ctx context.Context, text, categoryHint string) ([]nerSpan, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body, err := json.Marshal(map[string]string{
		"text":     text,
		"category": categoryHint,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/ner"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("ner.http.send_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ner.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("ner.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ner service: non-2xx status %d", resp.StatusCode)
	}

	if err := validateJSONAgainstSchema(buildNERResponseSchema(), raw); err != nil {
		return nil, fmt.Errorf("ner service: %w", err)
	}

	var out struct {
		Entities []nerSpan `json:"entities"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Entities, nil
}

// dedupeSet removes duplicates and entries whose trimmed length is <= 1.
// Unlike the regex extractor, order is not guaranteed here.
func dedupeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if len(strings.TrimSpace(v)) <= 1 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
