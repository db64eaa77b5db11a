// Package store holds the latest successful extraction for a session.
package store

import (
	"time"

	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
)

// Snapshot is the content of the result slot.
type Snapshot struct {
	Record      extractor.Record `json:"record"`
	ModelUsed   string           `json:"model_used"`
	Account     string           `json:"account"`
	ExtractedAt time.Time        `json:"extracted_at"`
}

// ResultStore is a single slot with no history. It is owned by one session and
// is not safe for concurrent use; callers serialize through the session.
type ResultStore struct {
	current *Snapshot
	now     func() time.Time
}

func NewResultStore() *ResultStore {
	return &ResultStore{now: time.Now}
}

func (s *ResultStore) Get() (Snapshot, bool) {
	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

func (s *ResultStore) Set(snap Snapshot) {
	s.current = &snap
}

// Apply overwrites the slot with a successful outcome. A failed outcome leaves
// the previous result in place and Apply reports false.
func (s *ResultStore) Apply(account string, out extractor.Outcome) bool {
	if !out.OK() {
		return false
	}
	s.Set(Snapshot{
		Record:      out.Record,
		ModelUsed:   out.ModelUsed,
		Account:     account,
		ExtractedAt: s.now().UTC(),
	})
	return true
}
