package conflict

import (
	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/model"
)

// Summary groups validation results for the report list.
type Summary struct {
	Successes []model.ValidationResult `json:"successes"`
	Conflicts []model.ValidationResult `json:"conflicts"`
	Warnings  []model.ValidationResult `json:"warnings"`
}

func (s Summary) Total() int {
	return len(s.Successes) + len(s.Conflicts) + len(s.Warnings)
}

// Summarize keeps the backend order inside each group. Unknown kinds are
// reported as warnings. Suggestions generated for conflicts are copied from idx
// when the result itself carries none.
func Summarize(results []model.ValidationResult, idx *Index) Summary {
	var s Summary
	for _, r := range results {
		switch r.Type {
		case model.ResultSuccess:
			s.Successes = append(s.Successes, r)
		case model.ResultConflict:
			if r.SuggestionLLM == "" && r.Element != "" {
				if rec, ok := idx.Get(identity.FromConflictKey(r.Element)); ok {
					r.SuggestionLLM = rec.Suggestion
				}
			}
			s.Conflicts = append(s.Conflicts, r)
		default:
			s.Warnings = append(s.Warnings, r)
		}
	}
	return s
}
