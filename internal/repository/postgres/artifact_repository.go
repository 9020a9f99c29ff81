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

type InfographicRepository struct {
	db *pgxpool.Pool
}

func NewInfographicRepository(db *pgxpool.Pool) *InfographicRepository {
	return &InfographicRepository{db: db}
}

func (r *InfographicRepository) Upsert(g *domain.PaperInfographic) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO paper_infographics (paper_id, html_content, checksum, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (paper_id) DO UPDATE SET
			html_content = EXCLUDED.html_content,
			checksum = EXCLUDED.checksum,
			updated_at = EXCLUDED.updated_at
	`

	g.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, g.PaperID, g.HTMLContent, g.Checksum, g.UpdatedAt)
	return err
}

func (r *InfographicRepository) GetByPaperID(paperID uuid.UUID) (*domain.PaperInfographic, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g := &domain.PaperInfographic{}
	err := r.db.QueryRow(ctx,
		`SELECT paper_id, html_content, checksum, updated_at FROM paper_infographics WHERE paper_id = $1`,
		paperID,
	).Scan(&g.PaperID, &g.HTMLContent, &g.Checksum, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *InfographicRepository) ExistsByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return existsByPaperIDs(r.db, "paper_infographics", paperIDs)
}

type VisualRepository struct {
	db *pgxpool.Pool
}

func NewVisualRepository(db *pgxpool.Pool) *VisualRepository {
	return &VisualRepository{db: db}
}

func (r *VisualRepository) Upsert(v *domain.PaperVisual) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		INSERT INTO paper_visuals (paper_id, image_data, checksum, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (paper_id) DO UPDATE SET
			image_data = EXCLUDED.image_data,
			checksum = EXCLUDED.checksum,
			updated_at = EXCLUDED.updated_at
	`

	v.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, v.PaperID, v.ImageData, v.Checksum, v.UpdatedAt)
	return err
}

func (r *VisualRepository) GetByPaperID(paperID uuid.UUID) (*domain.PaperVisual, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v := &domain.PaperVisual{}
	err := r.db.QueryRow(ctx,
		`SELECT paper_id, image_data, checksum, updated_at FROM paper_visuals WHERE paper_id = $1`,
		paperID,
	).Scan(&v.PaperID, &v.ImageData, &v.Checksum, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *VisualRepository) ExistsByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return existsByPaperIDs(r.db, "paper_visuals", paperIDs)
}

func existsByPaperIDs(db *pgxpool.Pool, table string, paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(paperIDs))
	if len(paperIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := db.Query(ctx,
		`SELECT paper_id FROM `+table+` WHERE paper_id = ANY($1)`,
		paperIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result[id] = true
	}
	return result, rows.Err()
}
