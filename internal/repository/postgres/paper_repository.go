package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/domain"
)

const paperColumns = `id, arxiv_id, source, title, summary, authors, categories, primary_category,
	submitted_at, updated_at, pdf_url, abs_url, ingestion_batch_id, created_at`

// prefixedPaperColumns qualifies the paper column list for joined queries.
func prefixedPaperColumns(alias string) string {
	cols := strings.Split(paperColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

type PaperRepository struct {
	db *pgxpool.Pool
}

func NewPaperRepository(db *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{db: db}
}

func (r *PaperRepository) Upsert(paper *domain.Paper) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO papers (id, arxiv_id, source, title, summary, authors, categories, primary_category,
			submitted_at, updated_at, pdf_url, abs_url, ingestion_batch_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (arxiv_id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			authors = EXCLUDED.authors,
			categories = EXCLUDED.categories,
			primary_category = EXCLUDED.primary_category,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at,
			pdf_url = EXCLUDED.pdf_url,
			abs_url = EXCLUDED.abs_url,
			ingestion_batch_id = COALESCE(EXCLUDED.ingestion_batch_id, papers.ingestion_batch_id)
		RETURNING id
	`

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = time.Now()
	}

	return r.db.QueryRow(ctx, query,
		paper.ID,
		paper.ArxivID,
		paper.Source,
		paper.Title,
		paper.Summary,
		paper.Authors,
		paper.Categories,
		paper.PrimaryCategory,
		paper.SubmittedAt,
		paper.UpdatedAt,
		paper.PDFURL,
		paper.AbsURL,
		paper.IngestionBatchID,
		paper.CreatedAt,
	).Scan(&paper.ID)
}

func scanPaper(row pgx.Row) (*domain.Paper, error) {
	paper := &domain.Paper{}
	err := row.Scan(
		&paper.ID,
		&paper.ArxivID,
		&paper.Source,
		&paper.Title,
		&paper.Summary,
		&paper.Authors,
		&paper.Categories,
		&paper.PrimaryCategory,
		&paper.SubmittedAt,
		&paper.UpdatedAt,
		&paper.PDFURL,
		&paper.AbsURL,
		&paper.IngestionBatchID,
		&paper.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (r *PaperRepository) getOne(query string, args ...any) (*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	paper, err := scanPaper(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (r *PaperRepository) list(query string, args ...any) ([]*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
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

func (r *PaperRepository) GetByID(id uuid.UUID) (*domain.Paper, error) {
	return r.getOne(`SELECT `+paperColumns+` FROM papers WHERE id = $1`, id)
}

func (r *PaperRepository) GetByArxivID(arxivID string) (*domain.Paper, error) {
	return r.getOne(`SELECT `+paperColumns+` FROM papers WHERE arxiv_id = $1`, arxivID)
}

func (r *PaperRepository) GetByIDs(ids []uuid.UUID) ([]*domain.Paper, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(`SELECT `+paperColumns+` FROM papers WHERE id = ANY($1)`, ids)
}

func (r *PaperRepository) ListBySubmittedDate(date time.Time) ([]*domain.Paper, error) {
	return r.list(
		`SELECT `+paperColumns+` FROM papers WHERE submitted_at::date = $1::date ORDER BY submitted_at, arxiv_id`,
		date,
	)
}

func (r *PaperRepository) ListBySource(source string) ([]*domain.Paper, error) {
	return r.list(
		`SELECT `+paperColumns+` FROM papers WHERE source = $1 ORDER BY submitted_at DESC`,
		source,
	)
}

func (r *PaperRepository) ListRecent(since time.Time, limit int) ([]*domain.Paper, error) {
	return r.list(
		`SELECT `+paperColumns+` FROM papers WHERE submitted_at >= $1 ORDER BY submitted_at DESC LIMIT $2`,
		since, limit,
	)
}

func (r *PaperRepository) Delete(id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	return err
}
