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

const ttsColumns = `id, paper_id, voice_model, content_hash, file_path, file_size, generated_at`

type TTSRepository struct {
	db *pgxpool.Pool
}

func NewTTSRepository(db *pgxpool.Pool) *TTSRepository {
	return &TTSRepository{db: db}
}

func (r *TTSRepository) Create(t *domain.PaperTTS) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.GeneratedAt.IsZero() {
		t.GeneratedAt = time.Now()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO paper_tts (id, paper_id, voice_model, content_hash, file_path, file_size, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.PaperID, t.VoiceModel, t.ContentHash, t.FilePath, t.FileSize, t.GeneratedAt,
	)
	return err
}

func (r *TTSRepository) scanOne(row pgx.Row) (*domain.PaperTTS, error) {
	t := &domain.PaperTTS{}
	err := row.Scan(&t.ID, &t.PaperID, &t.VoiceModel, &t.ContentHash, &t.FilePath, &t.FileSize, &t.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TTSRepository) GetByHash(paperID uuid.UUID, voiceModel, contentHash string) (*domain.PaperTTS, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+ttsColumns+` FROM paper_tts
		 WHERE paper_id = $1 AND voice_model = $2 AND content_hash = $3
		 ORDER BY generated_at DESC LIMIT 1`,
		paperID, voiceModel, contentHash,
	))
}

func (r *TTSRepository) GetLatestByPaper(paperID uuid.UUID, voiceModel string) (*domain.PaperTTS, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT `+ttsColumns+` FROM paper_tts
		 WHERE paper_id = $1 AND ($2 = '' OR voice_model = $2)
		 ORDER BY generated_at DESC LIMIT 1`,
		paperID, voiceModel,
	))
}

func (r *TTSRepository) Delete(id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM paper_tts WHERE id = $1`, id)
	return err
}

func (r *TTSRepository) ListPaperIDsWithAudio(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(paperIDs))
	if len(paperIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT paper_id FROM paper_tts WHERE paper_id = ANY($1)`,
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
