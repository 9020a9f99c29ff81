package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/domain"
)

type EmbeddingRepository struct {
	db *pgxpool.Pool
}

func NewEmbeddingRepository(db *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) Upsert(emb *domain.PaperEmbedding) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO paper_embeddings (paper_id, model_name, vector, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (paper_id, model_name) DO UPDATE SET
			vector = EXCLUDED.vector,
			created_at = EXCLUDED.created_at
	`

	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query, emb.PaperID, emb.ModelName, emb.Vector, emb.CreatedAt)
	return err
}

func (r *EmbeddingRepository) GetByPaperIDs(ids []uuid.UUID, modelName string) (map[uuid.UUID][]float32, error) {
	if len(ids) == 0 {
		return map[uuid.UUID][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	query := `
		SELECT paper_id, vector
		FROM paper_embeddings
		WHERE paper_id = ANY($1) AND model_name = $2
	`

	rows, err := r.db.Query(ctx, query, ids, modelName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vectors := make(map[uuid.UUID][]float32, len(ids))
	for rows.Next() {
		var paperID uuid.UUID
		var vector []float32
		if err := rows.Scan(&paperID, &vector); err != nil {
			return nil, err
		}
		vectors[paperID] = vector
	}
	return vectors, rows.Err()
}
