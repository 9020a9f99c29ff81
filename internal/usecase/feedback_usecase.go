package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
)

var (
	ErrDislikeIrreversible = errors.New("dislike cannot be undone")
	ErrPaperDisliked       = errors.New("paper was disliked and is excluded from positive feedback")
	ErrPaperNotFound       = errors.New("paper not found")
)

// FeedbackResult reports the user's flags after the action, or asks the
// caller to confirm a destructive one.
type FeedbackResult struct {
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Liked                bool   `json:"liked"`
	Bookmarked           bool   `json:"bookmarked"`
	Disliked             bool   `json:"disliked"`
	Message              string `json:"message,omitempty"`
}

// FeedbackUsecase applies like, bookmark, and dislike actions. A dislike is
// terminal: it erases positive feedback, is refused without confirmation,
// and can never be removed.
type FeedbackUsecase struct {
	papers   domain.PaperRepository
	feedback domain.FeedbackRepository
	cache    FeedCache
}

func NewFeedbackUsecase(papers domain.PaperRepository, feedback domain.FeedbackRepository, feedCache FeedCache) *FeedbackUsecase {
	return &FeedbackUsecase{papers: papers, feedback: feedback, cache: feedCache}
}

// Apply executes one feedback action. value=true sets the flag, value=false
// clears it. confirmed only matters for setting a dislike.
func (u *FeedbackUsecase) Apply(ctx context.Context, userID, paperID uuid.UUID, kind domain.FeedbackKind, value, confirmed bool) (*FeedbackResult, error) {
	paper, err := u.papers.GetByID(paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}

	switch kind {
	case domain.FeedbackDislike:
		if !value {
			return nil, ErrDislikeIrreversible
		}
		if !confirmed {
			return &FeedbackResult{
				RequiresConfirmation: true,
				Message:              "disliking removes this paper from your feeds permanently",
			}, nil
		}
		// Positive feedback and a dislike never coexist.
		if err := u.feedback.DeleteKinds(userID, paperID, []domain.FeedbackKind{domain.FeedbackLike, domain.FeedbackBookmark}); err != nil {
			return nil, fmt.Errorf("clear positive feedback: %w", err)
		}
		if err := u.feedback.Upsert(&domain.UserFeedback{UserID: userID, PaperID: paperID, Kind: kind}); err != nil {
			return nil, fmt.Errorf("record dislike: %w", err)
		}

	case domain.FeedbackLike, domain.FeedbackBookmark:
		if value {
			disliked, err := u.feedback.Exists(userID, paperID, domain.FeedbackDislike)
			if err != nil {
				return nil, err
			}
			if disliked {
				return nil, ErrPaperDisliked
			}
			if err := u.feedback.Upsert(&domain.UserFeedback{UserID: userID, PaperID: paperID, Kind: kind}); err != nil {
				return nil, fmt.Errorf("record %s: %w", kind, err)
			}
		} else {
			if err := u.feedback.Delete(userID, paperID, kind); err != nil {
				return nil, fmt.Errorf("remove %s: %w", kind, err)
			}
		}

	default:
		return nil, fmt.Errorf("unknown feedback action %q", kind)
	}

	u.cache.InvalidateUser(ctx, userID)

	flags, err := u.feedback.Flags(userID, paperID)
	if err != nil {
		return nil, err
	}
	return &FeedbackResult{
		Liked:      flags.Liked,
		Bookmarked: flags.Bookmarked,
		Disliked:   flags.Disliked,
	}, nil
}

// Flags returns the user's current flags for one paper.
func (u *FeedbackUsecase) Flags(userID, paperID uuid.UUID) (domain.FeedbackFlags, error) {
	return u.feedback.Flags(userID, paperID)
}
