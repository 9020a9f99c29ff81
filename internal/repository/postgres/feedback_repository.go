package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flopap/backend/internal/domain"
)

type FeedbackRepository struct {
	db *pgxpool.Pool
}

func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Upsert(fb *domain.UserFeedback) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO user_feedback (id, user_id, paper_id, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, paper_id, kind) DO NOTHING
	`

	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query, fb.ID, fb.UserID, fb.PaperID, fb.Kind, fb.CreatedAt)
	return err
}

func (r *FeedbackRepository) Delete(userID, paperID uuid.UUID, kind domain.FeedbackKind) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`DELETE FROM user_feedback WHERE user_id = $1 AND paper_id = $2 AND kind = $3`,
		userID, paperID, kind,
	)
	return err
}

func (r *FeedbackRepository) DeleteKinds(userID, paperID uuid.UUID, kinds []domain.FeedbackKind) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	_, err := r.db.Exec(ctx,
		`DELETE FROM user_feedback WHERE user_id = $1 AND paper_id = $2 AND kind = ANY($3)`,
		userID, paperID, kindStrs,
	)
	return err
}

func (r *FeedbackRepository) Exists(userID, paperID uuid.UUID, kind domain.FeedbackKind) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_feedback WHERE user_id = $1 AND paper_id = $2 AND kind = $3)`,
		userID, paperID, kind,
	).Scan(&exists)
	return exists, err
}

func (r *FeedbackRepository) Flags(userID, paperID uuid.UUID) (domain.FeedbackFlags, error) {
	flagsMap, err := r.FlagsByPaperIDs(userID, []uuid.UUID{paperID})
	if err != nil {
		return domain.FeedbackFlags{}, err
	}
	return flagsMap[paperID], nil
}

func (r *FeedbackRepository) FlagsByPaperIDs(userID uuid.UUID, paperIDs []uuid.UUID) (map[uuid.UUID]domain.FeedbackFlags, error) {
	flags := make(map[uuid.UUID]domain.FeedbackFlags, len(paperIDs))
	if len(paperIDs) == 0 {
		return flags, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT paper_id, kind FROM user_feedback WHERE user_id = $1 AND paper_id = ANY($2)`,
		userID, paperIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var paperID uuid.UUID
		var kind domain.FeedbackKind
		if err := rows.Scan(&paperID, &kind); err != nil {
			return nil, err
		}
		f := flags[paperID]
		switch kind {
		case domain.FeedbackLike:
			f.Liked = true
		case domain.FeedbackBookmark:
			f.Bookmarked = true
		case domain.FeedbackDislike:
			f.Disliked = true
		}
		flags[paperID] = f
	}
	return flags, rows.Err()
}

func (r *FeedbackRepository) PaperIDsWithAnyFeedback(userID uuid.UUID) (map[uuid.UUID]bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT paper_id FROM user_feedback WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *FeedbackRepository) DislikedPaperIDs(userID uuid.UUID, since *time.Time) (map[uuid.UUID]bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `SELECT paper_id FROM user_feedback WHERE user_id = $1 AND kind = 'dislike'`
	args := []any{userID}
	if since != nil {
		query += ` AND created_at >= $2`
		args = append(args, *since)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *FeedbackRepository) LikedOrBookmarkedPaperIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT paper_id FROM user_feedback WHERE user_id = $1 AND kind IN ('like', 'bookmark')`,
		userID,
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

func (r *FeedbackRepository) CountsSince(since time.Time) (map[uuid.UUID]domain.FeedbackCounts, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT paper_id,
			COUNT(*) FILTER (WHERE kind = 'like'),
			COUNT(*) FILTER (WHERE kind = 'bookmark')
		FROM user_feedback
		WHERE created_at >= $1 AND kind IN ('like', 'bookmark')
		GROUP BY paper_id
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]domain.FeedbackCounts)
	for rows.Next() {
		var paperID uuid.UUID
		var c domain.FeedbackCounts
		if err := rows.Scan(&paperID, &c.Likes, &c.Bookmarks); err != nil {
			return nil, err
		}
		counts[paperID] = c
	}
	return counts, rows.Err()
}
