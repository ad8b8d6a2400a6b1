package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
	"github.com/portfoliokit/ingest-service/internal/ingest/processor"
	"github.com/portfoliokit/ingest-service/shared/postgresql"
)

// schema is the ingestion core's own bookkeeping table. It records what has
// been applied so replayed webhooks dedupe instead of duplicating; it is not
// the application's profile/project schema.
const schema = `
CREATE TABLE IF NOT EXISTS ingested_records (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	source_type TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`

type recordRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	SourceType string `db:"source_type"`
}

// Postgres applies candidate records against the ingested_records table.
type Postgres struct {
	db        *sqlx.DB
	threshold int
}

// NewPostgres creates a Postgres-backed record store and ensures its table
// exists. A threshold of zero selects DefaultSimilarityThreshold.
func NewPostgres(ctx context.Context, pg *postgresql.Client, threshold int) (*Postgres, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	db := pg.GetDB()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure ingested_records table: %w", err)
	}

	return &Postgres{db: db, threshold: threshold}, nil
}

// Apply decides create/update/skip for the candidate against existing record
// names. Database failures are wrapped as retryable so the caller routes
// them into the queue.
func (s *Postgres) Apply(ctx context.Context, record *domain.CandidateRecord) (Decision, error) {
	var rows []recordRow
	query := `SELECT id, name, source_type FROM ingested_records`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return "", domain.NewRetryableError(fmt.Errorf("failed to list existing records: %w", err))
	}

	bestIdx, bestScore := -1, 0
	for i, row := range rows {
		if score := processor.Similarity(record.Name, row.Name); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	now := time.Now().UTC()

	if bestIdx >= 0 && bestScore >= s.threshold {
		existing := rows[bestIdx]
		if sourcePriority(record.SourceType) < sourcePriority(existing.SourceType) {
			return DecisionSkipped, nil
		}

		update := `
			UPDATE ingested_records
			SET name = $2, source_type = $3, url = $4, description = $5, tags = $6, updated_at = $7
			WHERE id = $1`
		_, err := s.db.ExecContext(ctx, update,
			existing.ID,
			record.Name,
			record.SourceType,
			record.URL,
			record.Description,
			pq.Array(record.Tags),
			now,
		)
		if err != nil {
			return "", domain.NewRetryableError(fmt.Errorf("failed to update record: %w", err))
		}
		return DecisionUpdated, nil
	}

	insert := `
		INSERT INTO ingested_records (id, name, source_type, url, description, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	_, err := s.db.ExecContext(ctx, insert,
		uuid.New().String(),
		record.Name,
		record.SourceType,
		record.URL,
		record.Description,
		pq.Array(record.Tags),
		now,
	)
	if err != nil {
		return "", domain.NewRetryableError(fmt.Errorf("failed to insert record: %w", err))
	}
	return DecisionCreated, nil
}
