// Package conflict indexes the backend's conflict results by canonical id.
package conflict

import (
	"sort"

	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/model"
)

// Record is one conflicted element. Records are fixed once the model that
// owns them is published.
type Record struct {
	ID         identity.CanonicalID `json:"id"`
	Element    string               `json:"element"`
	Message    string               `json:"message"`
	Severity   model.ResultKind     `json:"severity"`
	Suggestion string               `json:"suggestion,omitempty"`
}

// Index maps canonical ids to their conflict record. A nil Index is empty.
type Index struct {
	records map[identity.CanonicalID]*Record
}

// Build keeps only conflict results that name an element. Later entries for
// the same id replace earlier ones.
func Build(results []model.ValidationResult) *Index {
	idx := &Index{records: make(map[identity.CanonicalID]*Record)}
	for _, r := range results {
		if r.Type != model.ResultConflict || r.Element == "" {
			continue
		}
		id := identity.Resolve(identity.ConflictKey(r.Element))
		if id == "" {
			continue
		}
		idx.records[id] = &Record{
			ID:         id,
			Element:    r.Element,
			Message:    r.Message,
			Severity:   r.Type,
			Suggestion: r.SuggestionLLM,
		}
	}
	return idx
}

func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.records)
}

func (x *Index) Has(id identity.CanonicalID) bool {
	if x == nil {
		return false
	}
	_, ok := x.records[id]
	return ok
}

// Message returns the conflict message for id, empty when id is not conflicted.
func (x *Index) Message(id identity.CanonicalID) string {
	if r, ok := x.Get(id); ok {
		return r.Message
	}
	return ""
}

func (x *Index) Get(id identity.CanonicalID) (Record, bool) {
	if x == nil {
		return Record{}, false
	}
	r, ok := x.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// IDs returns the conflicted ids in sorted order.
func (x *Index) IDs() []identity.CanonicalID {
	if x == nil {
		return nil
	}
	ids := make([]identity.CanonicalID, 0, len(x.records))
	for id := range x.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Records returns copies of every record, ordered by id.
func (x *Index) Records() []Record {
	ids := x.IDs()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, *x.records[id])
	}
	return out
}
