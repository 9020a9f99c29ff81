package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/domain"
)

type IngestionBatchRepository struct {
	db *pgxpool.Pool
}

func NewIngestionBatchRepository(db *pgxpool.Pool) *IngestionBatchRepository {
	return &IngestionBatchRepository{db: db}
}

func (r *IngestionBatchRepository) Create(batch *domain.IngestionBatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO ingestion_batches (id, source_date, fetched_at, query, item_count)
		VALUES ($1, $2, $3, $4, $5)
	`

	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.FetchedAt.IsZero() {
		batch.FetchedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query, batch.ID, batch.SourceDate, batch.FetchedAt, batch.Query, batch.ItemCount)
	return err
}
