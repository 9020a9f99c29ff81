package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
)

const dynamicRankingTTL = 7 * 24 * time.Hour

// RankingUsecase persists per-user, per-source ordered rankings.
type RankingUsecase struct {
	rankings domain.RankingRepository
	feedback domain.FeedbackRepository
	scorer   *Scorer
	// staticKeys are configured conference source keys; anything with the
	// conf/ prefix is static as well.
	staticKeys map[string]bool

	now func() time.Time
}

func NewRankingUsecase(
	rankings domain.RankingRepository,
	feedback domain.FeedbackRepository,
	scorer *Scorer,
	conferences []string,
) *RankingUsecase {
	staticKeys := make(map[string]bool, len(conferences))
	for _, conf := range conferences {
		staticKeys[conf] = true
		staticKeys[domain.NormalizeConferenceKey(conf)] = true
	}
	return &RankingUsecase{
		rankings:   rankings,
		feedback:   feedback,
		scorer:     scorer,
		staticKeys: staticKeys,
		now:        time.Now,
	}
}

// IsStatic classifies a source key: conference keys live until recomputed,
// arxiv day buckets expire.
func (u *RankingUsecase) IsStatic(sourceKey string) bool {
	return strings.HasPrefix(sourceKey, "conf/") || u.staticKeys[sourceKey]
}

// UpsertRanking scores the candidates for the user and atomically replaces
// the (user, source) row. Static sources exclude papers the user has any
// historical feedback on. When force is false an existing row is kept.
func (u *RankingUsecase) UpsertRanking(userID uuid.UUID, sourceKey string, candidateIDs []uuid.UUID, force bool, limit int) error {
	if !force {
		existing, err := u.rankings.Get(userID, sourceKey)
		if err != nil {
			return fmt.Errorf("check existing ranking: %w", err)
		}
		if existing != nil {
			return nil
		}
	}

	if u.IsStatic(sourceKey) {
		seen, err := u.feedback.PaperIDsWithAnyFeedback(userID)
		if err != nil {
			return fmt.Errorf("load feedback history: %w", err)
		}
		filtered := candidateIDs[:0:0]
		for _, id := range candidateIDs {
			if !seen[id] {
				filtered = append(filtered, id)
			}
		}
		candidateIDs = filtered
	}

	scored, err := u.scorer.RankForUser(userID, candidateIDs)
	if err != nil {
		return fmt.Errorf("rank candidates: %w", err)
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	poolDate := u.now()
	if d, ok := domain.ParseArxivDayKey(sourceKey); ok {
		poolDate = d
	}

	ranking := &domain.UserPaperRanking{
		UserID:    userID,
		SourceKey: sourceKey,
		PoolDate:  poolDate,
		PaperIDs:  make([]uuid.UUID, len(scored)),
		Scores:    make([]float64, len(scored)),
	}
	for i, sp := range scored {
		ranking.PaperIDs[i] = sp.PaperID
		ranking.Scores[i] = sp.Score
	}

	return u.rankings.Replace(ranking)
}

func (u *RankingUsecase) Read(userID uuid.UUID, sourceKey string) (*domain.UserPaperRanking, error) {
	return u.rankings.Get(userID, sourceKey)
}

// CleanupDynamic purges dynamic rankings older than seven days.
func (u *RankingUsecase) CleanupDynamic() (int64, error) {
	return u.rankings.DeleteDynamicBefore(u.now().Add(-dynamicRankingTTL))
}
