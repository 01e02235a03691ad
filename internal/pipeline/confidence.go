package pipeline

import "github.com/PabloZV/ml-document-system/constants"

// ScoreConfidence grades a processed document on a coarse heuristic scale.
// Longer text, extracted entities and a recognized category each raise the
// score from the 0.5 base; the ceiling is 0.95 because nothing here is ever
// certain enough for 1.0.
func ScoreConfidence(text string, entityValues int, category constants.Category) float64 {
	score := 0.5
	if len(text) > 100 {
		score += 0.2
	}
	if len(text) > 500 {
		score += 0.1
	}
	if entityValues > 0 {
		score += 0.1
	}
	if entityValues > 3 {
		score += 0.1
	}
	if category != constants.Unknown {
		score += 0.1
	}
	if score > 0.95 {
		score = 0.95
	}
	return score
}
