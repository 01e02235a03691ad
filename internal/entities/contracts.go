package entities

import "context"

// Source tags which extraction strategy produced a result. The two
// strategies deliberately return different shapes: the regex extractor omits
// kinds with no matches, while the model-assisted extractor always returns
// the eight NER kinds, empty lists included. Downstream consumers key off
// Source instead of guessing from the map.
type Source string

const (
	SourceRegex Source = "regex"
	SourceNER   Source = "ner"
)

// NERKinds are the eight kinds always present in a model-assisted result.
var NERKinds = []string{
	"persons",
	"organizations",
	"locations",
	"dates",
	"amounts",
	"emails",
	"phones",
	"addresses",
}

// Extraction is a tagged entity-extraction result.
type Extraction struct {
	Source Source
	Kinds  map[string][]string
}

// ValueCount returns the total number of extracted values across kinds.
func (e Extraction) ValueCount() int {
	n := 0
	for _, vs := range e.Kinds {
		n += len(vs)
	}
	return n
}

// Extractor is the interface the pipeline depends on.
type Extractor interface {
	Extract(ctx context.Context, text, categoryHint string) (Extraction, error)
}
