package entities

import "log/slog"

// ExtractRegex runs every pattern of every kind against text,
// case-insensitively, and returns the matches deduplicated in first-seen
// order. Kinds with zero matches are omitted from the result map.
// Deterministic: identical inputs yield identical key sets and value lists.
func ExtractRegex(text string, patterns map[string][]string) map[string][]string {
	result := make(map[string][]string)

	for kind, patternList := range patterns {
		var matches []string
		for _, pattern := range patternList {
			re, err := compilePattern(pattern)
			if err != nil {
				slog.Warn("skipping unparseable entity pattern", "kind", kind, "pattern", pattern, "error", err)
				continue
			}
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				// capture group wins over the full match when present
				if len(m) > 1 && m[1] != "" {
					matches = append(matches, m[1])
				} else {
					matches = append(matches, m[0])
				}
			}
		}
		if len(matches) > 0 {
			result[kind] = dedupeOrdered(matches)
		}
	}
	return result
}

func dedupeOrdered(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
