package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserProfile struct {
	UserID                uuid.UUID `json:"user_id"`
	InterestedCategories  []string  `json:"interested_categories"`
	ResearchKeywords      []string  `json:"research_keywords"`
	PreferenceDescription string    `json:"preference_description,omitempty"`
	OnboardingCompleted   bool      `json:"onboarding_completed"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// HasPreferences reports whether the profile carries any signal the
// scorer's profile path can use.
func (p *UserProfile) HasPreferences() bool {
	return p != nil && (len(p.InterestedCategories) > 0 || len(p.ResearchKeywords) > 0)
}

type UserProfileRepository interface {
	Get(userID uuid.UUID) (*UserProfile, error)
	Upsert(profile *UserProfile) error
	ListActiveUserIDs() ([]uuid.UUID, error)
}
