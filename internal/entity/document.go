package entity

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is the one persisted record of the system. It is built only after
// OCR produced enough text, and is immutable afterwards; reprocessing the
// same file overwrites the stored copy because the ID is derived from
// (category, filename).
type Document struct {
	ID        string              `json:"id"`
	Filename  string              `json:"filename"`
	FilePath  string              `json:"file_path"`
	Category  string              `json:"category"`
	Text      string              `json:"text"`
	Entities  map[string][]string `json:"entities"`
	WordCount int                 `json:"word_count"`
	Timestamp time.Time           `json:"timestamp"`
}

// NewDocument builds the record for a processed file. The timestamp is set
// here, once.
func NewDocument(filePath, category, text string, entities map[string][]string) Document {
	name := filepath.Base(filePath)
	return Document{
		ID:        category + "_" + name,
		Filename:  name,
		FilePath:  filePath,
		Category:  category,
		Text:      text,
		Entities:  entities,
		WordCount: len(strings.Fields(text)),
		Timestamp: time.Now(),
	}
}

// EntityKindCount returns the number of entity kinds present on the record.
// The summary sink reports kinds, not individual values.
func (d Document) EntityKindCount() int {
	return len(d.Entities)
}

// EntityValueCount returns the total number of extracted values.
func (d Document) EntityValueCount() int {
	n := 0
	for _, vs := range d.Entities {
		n += len(vs)
	}
	return n
}
