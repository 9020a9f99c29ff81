package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/domain"
)

type RankingRepository struct {
	db *pgxpool.Pool
}

func NewRankingRepository(db *pgxpool.Pool) *RankingRepository {
	return &RankingRepository{db: db}
}

// Replace deletes and reinserts the (user, source_key) row in one
// transaction; readers never observe a torn ranking.
func (r *RankingRepository) Replace(ranking *domain.UserPaperRanking) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM user_paper_rankings WHERE user_id = $1 AND source_key = $2`,
		ranking.UserID, ranking.SourceKey,
	); err != nil {
		return err
	}

	if ranking.CreatedAt.IsZero() {
		ranking.CreatedAt = time.Now()
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_paper_rankings (user_id, source_key, pool_date, paper_ids, scores, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ranking.UserID, ranking.SourceKey, ranking.PoolDate, ranking.PaperIDs, ranking.Scores, ranking.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *RankingRepository) Get(userID uuid.UUID, sourceKey string) (*domain.UserPaperRanking, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT user_id, source_key, pool_date, paper_ids, scores, created_at
		FROM user_paper_rankings
		WHERE user_id = $1 AND source_key = $2
	`

	ranking := &domain.UserPaperRanking{}
	err := r.db.QueryRow(ctx, query, userID, sourceKey).Scan(
		&ranking.UserID,
		&ranking.SourceKey,
		&ranking.PoolDate,
		&ranking.PaperIDs,
		&ranking.Scores,
		&ranking.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ranking, nil
}

// DeleteDynamicBefore purges arxiv_day rows whose pool date is older than
// the cutoff. Static (conference) rankings are untouched.
func (r *RankingRepository) DeleteDynamicBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`DELETE FROM user_paper_rankings WHERE source_key LIKE 'arxiv_day_%' AND pool_date < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
