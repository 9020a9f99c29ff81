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

type TranslationRepository struct {
	db *pgxpool.Pool
}

func NewTranslationRepository(db *pgxpool.Pool) *TranslationRepository {
	return &TranslationRepository{db: db}
}

func (r *TranslationRepository) Upsert(t *domain.PaperTranslation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO paper_translations (paper_id, title_zh, summary_zh, model_name, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (paper_id) DO UPDATE SET
			title_zh = EXCLUDED.title_zh,
			summary_zh = EXCLUDED.summary_zh,
			model_name = EXCLUDED.model_name,
			updated_at = EXCLUDED.updated_at
	`

	t.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, t.PaperID, t.TitleZH, t.SummaryZH, t.ModelName, t.UpdatedAt)
	return err
}

func (r *TranslationRepository) GetByPaperID(paperID uuid.UUID) (*domain.PaperTranslation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t := &domain.PaperTranslation{}
	err := r.db.QueryRow(ctx,
		`SELECT paper_id, title_zh, summary_zh, model_name, updated_at FROM paper_translations WHERE paper_id = $1`,
		paperID,
	).Scan(&t.PaperID, &t.TitleZH, &t.SummaryZH, &t.ModelName, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TranslationRepository) GetByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]*domain.PaperTranslation, error) {
	result := make(map[uuid.UUID]*domain.PaperTranslation, len(paperIDs))
	if len(paperIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT paper_id, title_zh, summary_zh, model_name, updated_at FROM paper_translations WHERE paper_id = ANY($1)`,
		paperIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t := &domain.PaperTranslation{}
		if err := rows.Scan(&t.PaperID, &t.TitleZH, &t.SummaryZH, &t.ModelName, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result[t.PaperID] = t
	}
	return result, rows.Err()
}

// ListPapersMissing selects papers with no complete translation. Partial
// rows (either field empty) count as missing and get regenerated.
func (r *TranslationRepository) ListPapersMissing(source string, limit int) ([]*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	query := `
		SELECT ` + prefixedPaperColumns("p") + `
		FROM papers p
		LEFT JOIN paper_translations t ON t.paper_id = p.id
		WHERE (t.paper_id IS NULL OR t.title_zh = '' OR t.summary_zh = '')
		AND ($1 = '' OR p.source = $1)
		ORDER BY p.submitted_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

type InterpretationRepository struct {
	db *pgxpool.Pool
}

func NewInterpretationRepository(db *pgxpool.Pool) *InterpretationRepository {
	return &InterpretationRepository{db: db}
}

func (r *InterpretationRepository) Upsert(i *domain.PaperInterpretation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO paper_interpretations (paper_id, content, language, model_name, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (paper_id) DO UPDATE SET
			content = EXCLUDED.content,
			language = EXCLUDED.language,
			model_name = EXCLUDED.model_name,
			updated_at = EXCLUDED.updated_at
	`

	i.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query, i.PaperID, i.Content, i.Language, i.ModelName, i.UpdatedAt)
	return err
}

func (r *InterpretationRepository) GetByPaperID(paperID uuid.UUID) (*domain.PaperInterpretation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	i := &domain.PaperInterpretation{}
	err := r.db.QueryRow(ctx,
		`SELECT paper_id, content, language, model_name, updated_at FROM paper_interpretations WHERE paper_id = $1`,
		paperID,
	).Scan(&i.PaperID, &i.Content, &i.Language, &i.ModelName, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (r *InterpretationRepository) GetByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]*domain.PaperInterpretation, error) {
	result := make(map[uuid.UUID]*domain.PaperInterpretation, len(paperIDs))
	if len(paperIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT paper_id, content, language, model_name, updated_at FROM paper_interpretations WHERE paper_id = ANY($1)`,
		paperIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		i := &domain.PaperInterpretation{}
		if err := rows.Scan(&i.PaperID, &i.Content, &i.Language, &i.ModelName, &i.UpdatedAt); err != nil {
			return nil, err
		}
		result[i.PaperID] = i
	}
	return result, rows.Err()
}

func (r *InterpretationRepository) ListPapersMissing(source string, limit int) ([]*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	query := `
		SELECT ` + prefixedPaperColumns("p") + `
		FROM papers p
		LEFT JOIN paper_interpretations i ON i.paper_id = p.id
		WHERE i.paper_id IS NULL
		AND ($1 = '' OR p.source = $1)
		ORDER BY p.submitted_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}
