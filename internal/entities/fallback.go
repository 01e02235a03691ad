package entities

import (
	"context"
	"log/slog"
)

// FallbackExtractor tries the model-assisted strategy first and falls over
// to the regex table when the model path returns an error or was never
// configured. The fallover is total: a failed model call loses the 8-kind
// shape and the caller receives the regex extractor's 6-kind result.
type FallbackExtractor struct {
	ner      *NERClient // nil when no NER service is configured
	patterns map[string][]string
	logger   *slog.Logger
}

func NewFallbackExtractor(ner *NERClient, patterns map[string][]string, logger *slog.Logger) *FallbackExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if patterns == nil {
		patterns = DefaultPatterns
	}
	return &FallbackExtractor{ner: ner, patterns: patterns, logger: logger}
}

// Extract never returns an error: the regex strategy is total.
func (f *FallbackExtractor) Extract(ctx context.Context, text, categoryHint string) (Extraction, error) {
	if f.ner != nil {
		ex, err := f.ner.Extract(ctx, text, categoryHint)
		if err == nil {
			return ex, nil
		}
		f.logger.Warn("ner extraction failed, falling back to regex", "error", err)
	}
	return Extraction{Source: SourceRegex, Kinds: ExtractRegex(text, f.patterns)}, nil
}
