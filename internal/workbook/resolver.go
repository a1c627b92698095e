package workbook

import "sheetagent/internal/normalize"

// DefaultResolveThreshold is the minimum similarity score for a column
// resolution to count as confident.
const DefaultResolveThreshold = 80

// Resolution is the outcome of fuzzy column lookup. An unmatched phrase is
// a negative result carrying the best guess, not an error: the caller
// decides whether to ask for clarification or give up.
type Resolution struct {
	Matched   bool   `json:"matched"`
	Column    string `json:"column,omitempty"`
	BestGuess string `json:"best_guess,omitempty"`
	Score     int    `json:"score"`
}

// ResolveColumn matches a free-text column phrase against a sheet's raw
// and canonical headers. Candidates are scored in declaration order and
// ties keep the first candidate, so the outcome is deterministic.
func (wb *Workbook) ResolveColumn(sheetName, phrase string, threshold int) (Resolution, error) {
	t, err := wb.Table(sheetName)
	if err != nil {
		return Resolution{}, err
	}
	if threshold <= 0 {
		threshold = DefaultResolveThreshold
	}

	cleaned := normalize.Clean(phrase)
	best := Resolution{Score: -1}
	for _, col := range t.Columns {
		score := normalize.Score(cleaned, normalize.Clean(col.Raw))
		if canonicalScore := normalize.Score(cleaned, col.Name); canonicalScore > score {
			score = canonicalScore
		}
		if score > best.Score {
			best = Resolution{Column: col.Name, BestGuess: col.Name, Score: score}
		}
	}
	if best.Score > threshold {
		best.Matched = true
		return best, nil
	}
	best.Matched = false
	best.Column = ""
	return best, nil
}
