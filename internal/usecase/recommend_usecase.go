package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/flopap/backend/internal/domain"
)

type RecommendReport struct {
	SourceKey string `json:"source_key"`
	PoolSize  int    `json:"pool_size"`
	Users     int    `json:"users"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	DynamicGC int64  `json:"dynamic_gc"`
}

// RecommendUsecase runs the daily ranking batch: one ranking per active
// user over the day's candidate pool, bounded by a worker limit.
type RecommendUsecase struct {
	profiles   domain.UserProfileRepository
	candidates *CandidateUsecase
	rankings   *RankingUsecase
	maxWorkers int64
	log        zerolog.Logger
}

func NewRecommendUsecase(
	profiles domain.UserProfileRepository,
	candidates *CandidateUsecase,
	rankings *RankingUsecase,
	maxWorkers int,
	log zerolog.Logger,
) *RecommendUsecase {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &RecommendUsecase{
		profiles:   profiles,
		candidates: candidates,
		rankings:   rankings,
		maxWorkers: int64(maxWorkers),
		log:        log,
	}
}

// RunForDate ranks the target day's pool for every active user, then purges
// expired dynamic rankings.
func (u *RecommendUsecase) RunForDate(ctx context.Context, targetDate time.Time, force bool) (*RecommendReport, error) {
	sourceKey := domain.ArxivDayKey(targetDate)
	report := &RecommendReport{SourceKey: sourceKey}

	candidateIDs, err := u.candidates.Read(targetDate, domain.FilterCS)
	if err != nil {
		return nil, fmt.Errorf("read candidate pool: %w", err)
	}
	report.PoolSize = len(candidateIDs)
	if len(candidateIDs) == 0 {
		return report, nil
	}

	userIDs, err := u.profiles.ListActiveUserIDs()
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	report.Users = len(userIDs)

	sem := semaphore.NewWeighted(u.maxWorkers)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, userID := range userIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			defer sem.Release(1)

			err := u.rankings.UpsertRanking(userID, sourceKey, candidateIDs, force, 0)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				u.log.Warn().Err(err).Str("source_key", sourceKey).Msg("user ranking failed")
				return
			}
			report.Succeeded++
		}(userID)
	}
	wg.Wait()

	purged, err := u.rankings.CleanupDynamic()
	if err != nil {
		u.log.Warn().Err(err).Msg("dynamic ranking cleanup failed")
	}
	report.DynamicGC = purged

	return report, nil
}
