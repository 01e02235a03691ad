package constants

import (
	"strings"
)

// Category is a document type label. The closed set mirrors the folder names
// of the scanned-document dataset; Unknown is returned when neither the path
// nor the text gives a usable signal.
type Category string

const (
	Advertisement         Category = "advertisement"
	Budget                Category = "budget"
	Email                 Category = "email"
	FileFolder            Category = "file_folder"
	Form                  Category = "form"
	Handwritten           Category = "handwritten"
	Invoice               Category = "invoice"
	Letter                Category = "letter"
	Memo                  Category = "memo"
	NewsArticle           Category = "news_article"
	Presentation          Category = "presentation"
	Questionnaire         Category = "questionnaire"
	Resume                Category = "resume"
	ScientificPublication Category = "scientific_publication"
	ScientificReport      Category = "scientific_report"
	Specification         Category = "specification"
	Unknown               Category = "unknown"
)

var allCategories = []Category{
	Advertisement,
	Budget,
	Email,
	FileFolder,
	Form,
	Handwritten,
	Invoice,
	Letter,
	Memo,
	NewsArticle,
	Presentation,
	Questionnaire,
	Resume,
	ScientificPublication,
	ScientificReport,
	Specification,
}

var categorySet = func() map[string]Category {
	m := make(map[string]Category, len(allCategories))
	for _, c := range allCategories {
		m[string(c)] = c
	}
	return m
}()

// AsStringSlice returns the known categories (Unknown excluded).
func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Lookup resolves a string to a known category, ignoring case and
// surrounding whitespace. Unknown is not a dataset category and does not
// resolve.
func Lookup(input string) (Category, bool) {
	cat, ok := categorySet[strings.ToLower(strings.TrimSpace(input))]
	return cat, ok
}

// IsKnown reports whether s names one of the dataset categories.
func IsKnown(s string) bool {
	_, ok := categorySet[s]
	return ok
}
