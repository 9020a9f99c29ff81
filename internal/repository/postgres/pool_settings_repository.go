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

type PoolSettingsRepository struct {
	db *pgxpool.Pool
}

func NewPoolSettingsRepository(db *pgxpool.Pool) *PoolSettingsRepository {
	return &PoolSettingsRepository{db: db}
}

func (r *PoolSettingsRepository) Get(userID uuid.UUID, sourceKey string) (*domain.PoolSettings, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := &domain.PoolSettings{}
	err := r.db.QueryRow(ctx,
		`SELECT user_id, source_key, pool_ratio, max_pool_size, show_mode, filter_no_content, updated_at
		 FROM data_source_pool_settings WHERE user_id = $1 AND source_key = $2`,
		userID, sourceKey,
	).Scan(&s.UserID, &s.SourceKey, &s.PoolRatio, &s.MaxPoolSize, &s.ShowMode, &s.FilterNoContent, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PoolSettingsRepository) Upsert(s *domain.PoolSettings) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO data_source_pool_settings (user_id, source_key, pool_ratio, max_pool_size, show_mode, filter_no_content, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, source_key) DO UPDATE SET
			pool_ratio = EXCLUDED.pool_ratio,
			max_pool_size = EXCLUDED.max_pool_size,
			show_mode = EXCLUDED.show_mode,
			filter_no_content = EXCLUDED.filter_no_content,
			updated_at = EXCLUDED.updated_at
	`

	s.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query,
		s.UserID, s.SourceKey, s.PoolRatio, s.MaxPoolSize, s.ShowMode, s.FilterNoContent, s.UpdatedAt,
	)
	return err
}

func (r *PoolSettingsRepository) ListByUser(userID uuid.UUID) ([]*domain.PoolSettings, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT user_id, source_key, pool_ratio, max_pool_size, show_mode, filter_no_content, updated_at
		 FROM data_source_pool_settings WHERE user_id = $1 ORDER BY source_key`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*domain.PoolSettings
	for rows.Next() {
		s := &domain.PoolSettings{}
		if err := rows.Scan(&s.UserID, &s.SourceKey, &s.PoolRatio, &s.MaxPoolSize, &s.ShowMode, &s.FilterNoContent, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
