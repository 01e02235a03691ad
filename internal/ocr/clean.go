package ocr

import (
	"regexp"
	"strings"
)

var (
	// keep letters and digits (any script, not just ASCII), whitespace and
	// common document punctuation
	reDisallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-$@]`)
	reWhitespace = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// Clean normalizes raw OCR output: strips characters outside the allow-list,
// collapses whitespace runs, drops lines of 2 or fewer characters (OCR
// artifacts) and rejoins the survivors with single spaces. Total and
// idempotent: Clean(Clean(s)) == Clean(s) for any input.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := reDisallowed.ReplaceAllString(raw, "")

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(reWhitespace.ReplaceAllString(line, " "))
		if len(line) > 2 {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}
