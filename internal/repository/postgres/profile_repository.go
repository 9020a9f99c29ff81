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

type UserProfileRepository struct {
	db *pgxpool.Pool
}

func NewUserProfileRepository(db *pgxpool.Pool) *UserProfileRepository {
	return &UserProfileRepository{db: db}
}

func (r *UserProfileRepository) Get(userID uuid.UUID) (*domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		SELECT user_id, interested_categories, research_keywords, preference_description,
			onboarding_completed, updated_at
		FROM user_profiles WHERE user_id = $1
	`

	profile := &domain.UserProfile{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.InterestedCategories,
		&profile.ResearchKeywords,
		&profile.PreferenceDescription,
		&profile.OnboardingCompleted,
		&profile.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *UserProfileRepository) Upsert(profile *domain.UserProfile) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO user_profiles (user_id, interested_categories, research_keywords,
			preference_description, onboarding_completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			interested_categories = EXCLUDED.interested_categories,
			research_keywords = EXCLUDED.research_keywords,
			preference_description = EXCLUDED.preference_description,
			onboarding_completed = EXCLUDED.onboarding_completed,
			updated_at = EXCLUDED.updated_at
	`

	profile.UpdatedAt = time.Now()

	_, err := r.db.Exec(ctx, query,
		profile.UserID,
		profile.InterestedCategories,
		profile.ResearchKeywords,
		profile.PreferenceDescription,
		profile.OnboardingCompleted,
		profile.UpdatedAt,
	)
	return err
}

func (r *UserProfileRepository) ListActiveUserIDs() ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT user_id FROM user_profiles ORDER BY user_id`)
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
