package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
	"github.com/portfoliokit/ingest-service/internal/ingest/processor"
)

type memoryRecord struct {
	id         string
	name       string
	sourceType string
	updatedAt  time.Time
	record     domain.CandidateRecord
}

// Memory is an in-memory RecordStore for tests and database-less runs.
type Memory struct {
	mu        sync.Mutex
	threshold int
	records   []memoryRecord
}

// NewMemory creates an in-memory store. A threshold of zero selects
// DefaultSimilarityThreshold.
func NewMemory(threshold int) *Memory {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Memory{threshold: threshold}
}

// Apply decides create/update/skip for the candidate against the records
// seen so far.
func (m *Memory) Apply(_ context.Context, record *domain.CandidateRecord) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bestIdx, bestScore := -1, 0
	for i, existing := range m.records {
		if score := processor.Similarity(record.Name, existing.name); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	if bestIdx >= 0 && bestScore >= m.threshold {
		existing := &m.records[bestIdx]
		if sourcePriority(record.SourceType) < sourcePriority(existing.sourceType) {
			return DecisionSkipped, nil
		}
		existing.name = record.Name
		existing.sourceType = record.SourceType
		existing.updatedAt = time.Now()
		existing.record = *record
		return DecisionUpdated, nil
	}

	m.records = append(m.records, memoryRecord{
		id:         uuid.New().String(),
		name:       record.Name,
		sourceType: record.SourceType,
		updatedAt:  time.Now(),
		record:     *record,
	})
	return DecisionCreated, nil
}

// Len reports how many records the store holds.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
