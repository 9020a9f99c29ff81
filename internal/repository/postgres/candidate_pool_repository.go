package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CandidatePoolRepository struct {
	db *pgxpool.Pool
}

func NewCandidatePoolRepository(db *pgxpool.Pool) *CandidatePoolRepository {
	return &CandidatePoolRepository{db: db}
}

// Rebuild is delete-then-insert in one transaction so a pool build is
// idempotent under replay.
func (r *CandidatePoolRepository) Rebuild(batchID uuid.UUID, filterType string, paperIDs []uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM candidate_pools WHERE batch_id = $1 AND filter_type = $2`,
		batchID, filterType,
	); err != nil {
		return err
	}

	for pos, paperID := range paperIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO candidate_pools (batch_id, filter_type, paper_id, position) VALUES ($1, $2, $3, $4)`,
			batchID, filterType, paperID, pos,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *CandidatePoolRepository) Read(batchID uuid.UUID, filterType string) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT paper_id FROM candidate_pools WHERE batch_id = $1 AND filter_type = $2 ORDER BY position`,
		batchID, filterType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
