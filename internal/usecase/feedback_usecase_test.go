package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flopap/backend/internal/domain"
)

func newFeedbackFixture(t *testing.T) (*FeedbackUsecase, *fakePaperRepo, *fakeFeedbackRepo, *fakeCache) {
	t.Helper()
	papers := newFakePaperRepo()
	feedback := newFakeFeedbackRepo()
	cache := newFakeCache()
	return NewFeedbackUsecase(papers, feedback, cache), papers, feedback, cache
}

func TestFeedbackLikeAndUnlike(t *testing.T) {
	uc, papers, _, cache := newFeedbackFixture(t)
	userID := uuid.New()
	paper := papers.add(&domain.Paper{ArxivID: "2608.60001"})

	result, err := uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackLike, true, false)
	require.NoError(t, err)
	require.True(t, result.Liked)
	require.False(t, result.RequiresConfirmation)
	require.Equal(t, 1, cache.invalidated)

	result, err = uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackLike, false, false)
	require.NoError(t, err)
	require.False(t, result.Liked)
	require.Equal(t, 2, cache.invalidated)
}

func TestFeedbackDislikeRequiresConfirmation(t *testing.T) {
	uc, papers, feedback, cache := newFeedbackFixture(t)
	userID := uuid.New()
	paper := papers.add(&domain.Paper{ArxivID: "2608.60002"})

	// Unconfirmed dislike: no mutation, no cache invalidation.
	result, err := uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackDislike, true, false)
	require.NoError(t, err)
	require.True(t, result.RequiresConfirmation)
	require.Zero(t, cache.invalidated)

	disliked, _ := feedback.Exists(userID, paper.ID, domain.FeedbackDislike)
	require.False(t, disliked)
}

func TestFeedbackConfirmedDislikeErasesPositive(t *testing.T) {
	uc, papers, feedback, cache := newFeedbackFixture(t)
	userID := uuid.New()
	paper := papers.add(&domain.Paper{ArxivID: "2608.60003"})

	_, err := uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackLike, true, false)
	require.NoError(t, err)
	_, err = uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackBookmark, true, false)
	require.NoError(t, err)

	result, err := uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackDislike, true, true)
	require.NoError(t, err)
	require.True(t, result.Disliked)
	require.False(t, result.Liked)
	require.False(t, result.Bookmarked)

	flags, _ := feedback.Flags(userID, paper.ID)
	require.Equal(t, domain.FeedbackFlags{Disliked: true}, flags)
	require.Equal(t, 3, cache.invalidated)
}

func TestFeedbackDislikeCannotBeUndone(t *testing.T) {
	uc, papers, _, _ := newFeedbackFixture(t)
	userID := uuid.New()
	paper := papers.add(&domain.Paper{ArxivID: "2608.60004"})

	_, err := uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackDislike, true, true)
	require.NoError(t, err)

	_, err = uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackDislike, false, false)
	require.ErrorIs(t, err, ErrDislikeIrreversible)
}

func TestFeedbackPositiveRejectedAfterDislike(t *testing.T) {
	uc, papers, _, _ := newFeedbackFixture(t)
	userID := uuid.New()
	paper := papers.add(&domain.Paper{ArxivID: "2608.60005"})

	_, err := uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackDislike, true, true)
	require.NoError(t, err)

	_, err = uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackLike, true, false)
	require.ErrorIs(t, err, ErrPaperDisliked)
	_, err = uc.Apply(context.Background(), userID, paper.ID, domain.FeedbackBookmark, true, false)
	require.ErrorIs(t, err, ErrPaperDisliked)
}

func TestFeedbackUnknownPaper(t *testing.T) {
	uc, _, _, _ := newFeedbackFixture(t)
	_, err := uc.Apply(context.Background(), uuid.New(), uuid.New(), domain.FeedbackLike, true, false)
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestParseFeedbackKind(t *testing.T) {
	for _, valid := range []string{"like", "bookmark", "dislike"} {
		kind, err := domain.ParseFeedbackKind(valid)
		require.NoError(t, err)
		require.EqualValues(t, valid, kind)
	}
	_, err := domain.ParseFeedbackKind("upvote")
	require.Error(t, err)
}
