package usecase

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flopap/backend/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
}

func newTestScorer(papers *fakePaperRepo, embeddings *fakeEmbeddingRepo, feedback *fakeFeedbackRepo, profiles *fakeProfileRepo) *Scorer {
	s := NewScorer(papers, embeddings, feedback, profiles, "test-embed")
	s.now = fixedNow
	s.rand = func() float64 { return 0.5 }
	return s
}

func TestScorerEmbeddingPath(t *testing.T) {
	papers := newFakePaperRepo()
	embeddings := newFakeEmbeddingRepo()
	feedback := newFakeFeedbackRepo()
	profiles := newFakeProfileRepo()

	userID := uuid.New()

	liked := papers.add(&domain.Paper{ArxivID: "2608.00001", SubmittedAt: fixedNow().AddDate(0, 0, -10)})
	embeddings.vectors[liked.ID] = []float32{1, 0}
	feedback.set(userID, liked.ID, domain.FeedbackLike, fixedNow())

	// Fresh paper aligned with the liked one, old paper orthogonal to it.
	aligned := papers.add(&domain.Paper{ArxivID: "2608.00002", SubmittedAt: fixedNow()})
	embeddings.vectors[aligned.ID] = []float32{1, 0}
	orthogonal := papers.add(&domain.Paper{ArxivID: "2608.00003", SubmittedAt: fixedNow().AddDate(0, 0, -30)})
	embeddings.vectors[orthogonal.ID] = []float32{0, 1}

	scorer := newTestScorer(papers, embeddings, feedback, profiles)
	scored, err := scorer.RankForUser(userID, []uuid.UUID{aligned.ID, orthogonal.ID})
	require.NoError(t, err)
	require.Len(t, scored, 2)

	// aligned: 0.5 + dot(1) + recency(1) = 2.5; orthogonal: 0.5 + 0 + 0 = 0.5
	require.Equal(t, aligned.ID, scored[0].PaperID)
	require.InDelta(t, 2.5, scored[0].Score, 1e-9)
	require.Equal(t, orthogonal.ID, scored[1].PaperID)
	require.InDelta(t, 0.5, scored[1].Score, 1e-9)
}

func TestScorerProfilePath(t *testing.T) {
	papers := newFakePaperRepo()
	embeddings := newFakeEmbeddingRepo()
	feedback := newFakeFeedbackRepo()
	profiles := newFakeProfileRepo()

	userID := uuid.New()
	require.NoError(t, profiles.Upsert(&domain.UserProfile{
		UserID:               userID,
		InterestedCategories: []string{"cs.LG"},
		ResearchKeywords:     []string{"diffusion"},
	}))

	// 30 days old, so recency is zero; one of one categories matches and
	// one of one keywords matches: 0.3 + 0.5 + 0.3 = 1.1
	paper := papers.add(&domain.Paper{
		ArxivID:     "2607.01000",
		Title:       "Diffusion models revisited",
		Summary:     "A study.",
		Categories:  []string{"cs.LG"},
		SubmittedAt: fixedNow().AddDate(0, 0, -30),
	})

	scorer := newTestScorer(papers, embeddings, feedback, profiles)
	scored, err := scorer.RankForUser(userID, []uuid.UUID{paper.ID})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	require.InDelta(t, 1.1, scored[0].Score, 1e-9)
}

func TestScorerColdStartRange(t *testing.T) {
	papers := newFakePaperRepo()
	embeddings := newFakeEmbeddingRepo()
	feedback := newFakeFeedbackRepo()
	profiles := newFakeProfileRepo()

	paper := papers.add(&domain.Paper{ArxivID: "2608.02000", SubmittedAt: fixedNow()})

	scorer := newTestScorer(papers, embeddings, feedback, profiles)
	scored, err := scorer.RankForUser(uuid.New(), []uuid.UUID{paper.ID})
	require.NoError(t, err)
	require.Len(t, scored, 1)

	// rand(0.5) + 0.3*recency(1) = 0.8; the cold-start range is [0, 1.3].
	require.InDelta(t, 0.8, scored[0].Score, 1e-9)
	require.GreaterOrEqual(t, scored[0].Score, 0.0)
	require.LessOrEqual(t, scored[0].Score, 1.3)
}

func TestScorerSortedDescending(t *testing.T) {
	papers := newFakePaperRepo()
	embeddings := newFakeEmbeddingRepo()
	feedback := newFakeFeedbackRepo()
	profiles := newFakeProfileRepo()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		p := papers.add(&domain.Paper{
			ArxivID:     uuid.NewString(),
			SubmittedAt: fixedNow().AddDate(0, 0, -i*7),
		})
		ids = append(ids, p.ID)
	}

	scorer := newTestScorer(papers, embeddings, feedback, profiles)
	scored, err := scorer.RankForUser(uuid.New(), ids)
	require.NoError(t, err)
	require.Len(t, scored, 5)
	for i := 1; i < len(scored); i++ {
		require.GreaterOrEqual(t, scored[i-1].Score, scored[i].Score)
	}
}

func TestRecencyBonusClamps(t *testing.T) {
	now := fixedNow()
	require.InDelta(t, 1.0, recencyBonus(now, now), 1e-9)
	require.InDelta(t, 0.5, recencyBonus(now.AddDate(0, 0, -15), now), 1e-9)
	require.InDelta(t, 0.0, recencyBonus(now.AddDate(0, 0, -45), now), 1e-9)
	// Future submission dates do not overshoot.
	require.InDelta(t, 1.0, recencyBonus(now.AddDate(0, 0, 2), now), 1e-9)
}
