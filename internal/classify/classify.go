// Package classify maps a document to one of the fixed category labels.
// The folder name is authoritative; keyword matching over the cleaned text
// is only a fallback for files that arrive outside the dataset layout
// (uploads land in a temp directory with no category segment).
package classify

import (
	"strings"

	"github.com/PabloZV/ml-document-system/constants"
)

// keywordRules are evaluated in order; the first category whose keyword
// appears in the lowercased text wins.
var keywordRules = []struct {
	category constants.Category
	keywords []string
}{
	{constants.Invoice, []string{"invoice", "bill", "payment", "amount", "$"}},
	{constants.Form, []string{"form", "application", "request"}},
	{constants.Resume, []string{"resume", "cv", "experience", "education"}},
	{constants.Letter, []string{"letter", "dear", "sincerely"}},
	{constants.Memo, []string{"memo", "memorandum", "subject:"}},
}

// Classify returns the category for a document. Deterministic, never fails.
func Classify(filePath, text string) constants.Category {
	for _, part := range splitPath(filePath) {
		if cat, ok := constants.Lookup(part); ok {
			return cat
		}
	}

	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return constants.Unknown
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}
