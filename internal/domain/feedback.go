package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type FeedbackKind string

const (
	FeedbackLike     FeedbackKind = "like"
	FeedbackBookmark FeedbackKind = "bookmark"
	FeedbackDislike  FeedbackKind = "dislike"
)

// ParseFeedbackKind rejects unknown actions at the boundary so every
// downstream switch over FeedbackKind can be exhaustive.
func ParseFeedbackKind(s string) (FeedbackKind, error) {
	switch FeedbackKind(s) {
	case FeedbackLike, FeedbackBookmark, FeedbackDislike:
		return FeedbackKind(s), nil
	}
	return "", fmt.Errorf("unknown feedback action %q", s)
}

type UserFeedback struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	PaperID   uuid.UUID    `json:"paper_id"`
	Kind      FeedbackKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

type FeedbackFlags struct {
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
	Disliked   bool `json:"disliked"`
}

type FeedbackCounts struct {
	Likes     int
	Bookmarks int
}

type FeedbackRepository interface {
	Upsert(fb *UserFeedback) error
	Delete(userID, paperID uuid.UUID, kind FeedbackKind) error
	DeleteKinds(userID, paperID uuid.UUID, kinds []FeedbackKind) error
	Exists(userID, paperID uuid.UUID, kind FeedbackKind) (bool, error)
	Flags(userID, paperID uuid.UUID) (FeedbackFlags, error)
	FlagsByPaperIDs(userID uuid.UUID, paperIDs []uuid.UUID) (map[uuid.UUID]FeedbackFlags, error)
	PaperIDsWithAnyFeedback(userID uuid.UUID) (map[uuid.UUID]bool, error)
	DislikedPaperIDs(userID uuid.UUID, since *time.Time) (map[uuid.UUID]bool, error)
	LikedOrBookmarkedPaperIDs(userID uuid.UUID) ([]uuid.UUID, error)
	CountsSince(since time.Time) (map[uuid.UUID]FeedbackCounts, error)
}
