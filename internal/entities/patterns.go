package entities

import (
	"regexp"
	"sync"
)

// DefaultPatterns is the six-kind table used by the regex extractor. A
// pattern with a capture group contributes the group, not the whole match
// (invoice numbers are captured without their label prefix).
var DefaultPatterns = map[string][]string{
	"email": {
		`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	},
	"phone": {
		`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`,
		`\(\d{3}\)\s*\d{3}[-.]?\d{4}\b`,
	},
	"date": {
		`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`,
		`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`,
		`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`,
	},
	"amount": {
		`\$\d{1,3}(?:,\d{3})*(?:\.\d{2})?`,
		`\b\d{1,3}(?:,\d{3})*(?:\.\d{2})?\s*(?:USD|dollars?)\b`,
	},
	"invoice_number": {
		`(?:Invoice|INV)[\s#-]*(\d+)`,
		`(?:Bill|Receipt)[\s#-]*(\d+)`,
	},
	"ssn": {
		`\b\d{3}-\d{2}-\d{4}\b`,
	},
}

// supplementary single patterns re-run over the full (untruncated) text by
// the model-assisted extractor
var (
	reEmailFull  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	rePhoneParts = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})\b`)
	reMoneyFull  = regexp.MustCompile(`\$\s*\d+(?:,\d{3})*(?:\.\d{2})?`)
)

var (
	reCacheMu sync.Mutex
	reCache   = map[string]*regexp.Regexp{}
)

// compilePattern returns a cached case-insensitive regexp for pattern.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	reCacheMu.Lock()
	defer reCacheMu.Unlock()
	if re, ok := reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return nil, err
	}
	reCache[pattern] = re
	return re, nil
}
