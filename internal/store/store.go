// Package store is the downstream collaborator boundary: it receives
// normalized candidate records and decides create vs update vs skip using
// fuzzy title similarity and source priority. The ingestion core never
// implements persistence logic beyond this bookkeeping.
package store

import (
	"context"

	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
)

// Decision is the outcome of applying a candidate record.
type Decision string

const (
	DecisionCreated Decision = "created"
	DecisionUpdated Decision = "updated"
	DecisionSkipped Decision = "skipped"
)

// DefaultSimilarityThreshold is the score at or above which two titles are
// treated as the same record.
const DefaultSimilarityThreshold = 85

// RecordStore applies candidate records to the canonical store.
type RecordStore interface {
	Apply(ctx context.Context, record *domain.CandidateRecord) (Decision, error)
}

// sourcePriority ranks sources for duplicate tie-breaks: an authoritative
// source's record wins over a lower-priority duplicate.
func sourcePriority(sourceType string) int {
	switch domain.Source(sourceType) {
	case domain.SourceGitHub:
		return 3
	case domain.SourceMedium:
		return 2
	case domain.SourceCustom:
		return 1
	default:
		return 0
	}
}
