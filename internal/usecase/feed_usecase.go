package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flopap/backend/internal/cache"
	"github.com/flopap/backend/internal/domain"
)

const (
	// arXiv publishes with a lag; "today" is the announcement day three
	// calendar days back in New York time.
	announcementLagDays = 3
	weekWindowDays      = 6

	defaultFeedPageSize = 20
	maxFeedPageSize     = 100

	trendingWindow = 7 * 24 * time.Hour
)

var ErrUnknownFeedSource = errors.New("unknown feed source")

// FeedCache is the pool cache surface; *cache.Cache satisfies it and a nil
// pointer degrades to a permanent miss.
type FeedCache interface {
	GetPool(ctx context.Context, key string) ([]domain.ScoredPaper, bool)
	SetPool(ctx context.Context, key string, items []domain.ScoredPaper)
	InvalidateUser(ctx context.Context, userID uuid.UUID)
}

// FeedItem is a hydrated feed entry.
type FeedItem struct {
	Paper             *domain.Paper        `json:"paper"`
	Score             float64              `json:"score"`
	TitleZH           string               `json:"title_zh,omitempty"`
	SummaryZH         string               `json:"summary_zh,omitempty"`
	Feedback          domain.FeedbackFlags `json:"feedback"`
	HasInterpretation bool                 `json:"has_interpretation"`
	HasInfographic    bool                 `json:"has_infographic"`
	HasVisual         bool                 `json:"has_visual"`
	HasAudio          bool                 `json:"has_audio"`
}

type FeedPage struct {
	Items      []*FeedItem `json:"items"`
	Total      int         `json:"total"`
	NextCursor int         `json:"next_cursor"`
	Source     string      `json:"source"`
}

// FeedUsecase assembles per-user feeds from stored rankings, layering
// real-time feedback filtering, pool settings, and cache on top.
type FeedUsecase struct {
	papers          domain.PaperRepository
	translations    domain.TranslationRepository
	interpretations domain.InterpretationRepository
	infographics    domain.InfographicRepository
	visuals         domain.VisualRepository
	ttsRows         domain.TTSRepository
	feedback        domain.FeedbackRepository
	settings        domain.PoolSettingsRepository
	candidates      *CandidateUsecase
	rankings        *RankingUsecase
	cache           FeedCache
	cloudMode       bool
	log             zerolog.Logger

	nowNY func() time.Time
}

func NewFeedUsecase(
	papers domain.PaperRepository,
	translations domain.TranslationRepository,
	interpretations domain.InterpretationRepository,
	infographics domain.InfographicRepository,
	visuals domain.VisualRepository,
	ttsRows domain.TTSRepository,
	feedback domain.FeedbackRepository,
	settings domain.PoolSettingsRepository,
	candidates *CandidateUsecase,
	rankings *RankingUsecase,
	feedCache FeedCache,
	cloudMode bool,
	log zerolog.Logger,
) *FeedUsecase {
	return &FeedUsecase{
		papers:          papers,
		translations:    translations,
		interpretations: interpretations,
		infographics:    infographics,
		visuals:         visuals,
		ttsRows:         ttsRows,
		feedback:        feedback,
		settings:        settings,
		candidates:      candidates,
		rankings:        rankings,
		cache:           feedCache,
		cloudMode:       cloudMode,
		log:             log,
		nowNY:           func() time.Time { return time.Now().In(newYorkTZ) },
	}
}

// AnnouncementDate is the newest day whose submissions are assumed fully
// announced.
func (u *FeedUsecase) AnnouncementDate() time.Time {
	now := u.nowNY()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, newYorkTZ)
	return day.AddDate(0, 0, -announcementLagDays)
}

// GetFeed returns one page of the user's feed for a source: "today", "week",
// or a conference id.
func (u *FeedUsecase) GetFeed(ctx context.Context, userID uuid.UUID, source string, cursor, limit int) (*FeedPage, error) {
	if limit <= 0 {
		limit = defaultFeedPageSize
	}
	if limit > maxFeedPageSize {
		limit = maxFeedPageSize
	}
	if cursor < 0 {
		cursor = 0
	}

	pool, err := u.assemblePool(ctx, userID, source)
	if err != nil {
		return nil, err
	}

	pool, err = u.applySettings(userID, source, pool)
	if err != nil {
		return nil, err
	}

	pool, err = u.applyDislikeFilter(userID, source, pool)
	if err != nil {
		return nil, err
	}

	page := &FeedPage{Source: source, Total: len(pool)}

	if cursor >= len(pool) {
		return page, nil
	}
	end := cursor + limit
	if end > len(pool) {
		end = len(pool)
	}
	window := pool[cursor:end]

	items, err := u.hydrate(userID, window)
	if err != nil {
		return nil, err
	}
	page.Items = items
	if end < len(pool) {
		page.NextCursor = end
	}
	return page, nil
}

// assemblePool resolves the scored id list for a source, consulting the
// cache for the dynamic feeds.
func (u *FeedUsecase) assemblePool(ctx context.Context, userID uuid.UUID, source string) ([]domain.ScoredPaper, error) {
	switch source {
	case "today":
		if cached, ok := u.cache.GetPool(ctx, cache.TodayPoolKey(userID)); ok {
			return cached, nil
		}
		target := u.AnnouncementDate()
		pool, err := u.dayPool(userID, target)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 && u.cloudMode {
			pool, err = u.trendingFallback()
			if err != nil {
				return nil, err
			}
		}
		u.cache.SetPool(ctx, cache.TodayPoolKey(userID), pool)
		return pool, nil

	case "week":
		if cached, ok := u.cache.GetPool(ctx, cache.WeekPoolKey(userID)); ok {
			return cached, nil
		}
		pool, err := u.weekPool(userID)
		if err != nil {
			return nil, err
		}
		u.cache.SetPool(ctx, cache.WeekPoolKey(userID), pool)
		return pool, nil

	default:
		if source == "" {
			return nil, ErrUnknownFeedSource
		}
		key := domain.NormalizeConferenceKey(source)
		ranking, err := u.rankings.Read(userID, key)
		if err != nil {
			return nil, err
		}
		if ranking == nil {
			return nil, nil
		}
		return scoredFromRanking(ranking), nil
	}
}

// dayPool returns the user's ranking for one announcement day, computing it
// on demand from that day's candidate pool.
func (u *FeedUsecase) dayPool(userID uuid.UUID, day time.Time) ([]domain.ScoredPaper, error) {
	key := domain.ArxivDayKey(day)

	ranking, err := u.rankings.Read(userID, key)
	if err != nil {
		return nil, err
	}
	if ranking == nil {
		candidateIDs, err := u.candidates.Read(day, domain.FilterCS)
		if err != nil {
			return nil, fmt.Errorf("read candidate pool for %s: %w", key, err)
		}
		if len(candidateIDs) == 0 {
			return nil, nil
		}
		if err := u.rankings.UpsertRanking(userID, key, candidateIDs, false, 0); err != nil {
			return nil, fmt.Errorf("compute ranking for %s: %w", key, err)
		}
		ranking, err = u.rankings.Read(userID, key)
		if err != nil || ranking == nil {
			return nil, err
		}
	}
	return scoredFromRanking(ranking), nil
}

// weekPool concatenates the six days before the current announcement day,
// newest day first, keeping the first occurrence of each paper.
func (u *FeedUsecase) weekPool(userID uuid.UUID) ([]domain.ScoredPaper, error) {
	target := u.AnnouncementDate()

	var merged []domain.ScoredPaper
	seen := make(map[uuid.UUID]bool)
	for offset := 1; offset <= weekWindowDays; offset++ {
		day := target.AddDate(0, 0, -offset)
		pool, err := u.dayPool(userID, day)
		if err != nil {
			return nil, err
		}
		for _, sp := range pool {
			if seen[sp.PaperID] {
				continue
			}
			seen[sp.PaperID] = true
			merged = append(merged, sp)
		}
	}
	return merged, nil
}

// trendingFallback ranks the last week's papers by community feedback,
// bookmarks counting double, recency breaking ties.
func (u *FeedUsecase) trendingFallback() ([]domain.ScoredPaper, error) {
	since := time.Now().Add(-trendingWindow)
	papers, err := u.papers.ListRecent(since, defaultPoolCap)
	if err != nil {
		return nil, err
	}
	counts, err := u.feedback.CountsSince(since)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredPaper, len(papers))
	for i, paper := range papers {
		c := counts[paper.ID]
		score := float64(c.Likes) + 2*float64(c.Bookmarks)
		age := time.Since(paper.SubmittedAt).Hours() / 24
		if age < float64(trendingWindow/(24*time.Hour)) {
			score += 1 - age/float64(trendingWindow/(24*time.Hour))
		}
		scored[i] = domain.ScoredPaper{PaperID: paper.ID, Score: score}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

const defaultPoolCap = 500

// applySettings trims the pool per the user's per-source settings.
func (u *FeedUsecase) applySettings(userID uuid.UUID, source string, pool []domain.ScoredPaper) ([]domain.ScoredPaper, error) {
	settings, err := u.settings.Get(userID, source)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = domain.DefaultPoolSettings(userID, source)
	}

	if settings.ShowMode == domain.ShowModePool {
		keep := int(float64(len(pool)) * settings.PoolRatio)
		if keep < len(pool) {
			pool = pool[:keep]
		}
		if settings.MaxPoolSize > 0 && len(pool) > settings.MaxPoolSize {
			pool = pool[:settings.MaxPoolSize]
		}
	}

	if settings.FilterNoContent && len(pool) > 0 {
		ids := poolIDs(pool)
		hasInterp, err := interpretationPresence(u.interpretations, ids)
		if err != nil {
			return nil, err
		}
		filtered := pool[:0:0]
		for _, sp := range pool {
			if hasInterp[sp.PaperID] {
				filtered = append(filtered, sp)
			}
		}
		pool = filtered
	}
	return pool, nil
}

// applyDislikeFilter removes dislikes at read time: conference feeds drop
// everything the user ever disliked, dynamic feeds only drop today's
// dislikes so older rankings stay stable.
func (u *FeedUsecase) applyDislikeFilter(userID uuid.UUID, source string, pool []domain.ScoredPaper) ([]domain.ScoredPaper, error) {
	if len(pool) == 0 {
		return pool, nil
	}

	var since *time.Time
	if source == "today" || source == "week" {
		now := u.nowNY()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, newYorkTZ)
		since = &dayStart
	}

	disliked, err := u.feedback.DislikedPaperIDs(userID, since)
	if err != nil {
		return nil, err
	}
	if len(disliked) == 0 {
		return pool, nil
	}

	filtered := pool[:0:0]
	for _, sp := range pool {
		if !disliked[sp.PaperID] {
			filtered = append(filtered, sp)
		}
	}
	return filtered, nil
}

// hydrate bulk-loads papers, translations, feedback flags, and content
// presence for one page.
func (u *FeedUsecase) hydrate(userID uuid.UUID, window []domain.ScoredPaper) ([]*FeedItem, error) {
	if len(window) == 0 {
		return nil, nil
	}
	ids := poolIDs(window)

	papers, err := u.papers.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.Paper, len(papers))
	for _, paper := range papers {
		byID[paper.ID] = paper
	}

	translations, err := u.translations.GetByPaperIDs(ids)
	if err != nil {
		return nil, err
	}
	flags, err := u.feedback.FlagsByPaperIDs(userID, ids)
	if err != nil {
		return nil, err
	}
	hasInterp, err := interpretationPresence(u.interpretations, ids)
	if err != nil {
		return nil, err
	}
	hasInfographic, err := u.infographics.ExistsByPaperIDs(ids)
	if err != nil {
		return nil, err
	}
	hasVisual, err := u.visuals.ExistsByPaperIDs(ids)
	if err != nil {
		return nil, err
	}
	hasAudio, err := u.ttsRows.ListPaperIDsWithAudio(ids)
	if err != nil {
		return nil, err
	}

	items := make([]*FeedItem, 0, len(window))
	for _, sp := range window {
		paper := byID[sp.PaperID]
		if paper == nil {
			// Ranking can reference a since-deleted paper.
			continue
		}
		item := &FeedItem{
			Paper:             paper,
			Score:             sp.Score,
			Feedback:          flags[sp.PaperID],
			HasInterpretation: hasInterp[sp.PaperID],
			HasInfographic:    hasInfographic[sp.PaperID],
			HasVisual:         hasVisual[sp.PaperID],
			HasAudio:          hasAudio[sp.PaperID],
		}
		if t := translations[sp.PaperID]; t.Complete() {
			item.TitleZH = t.TitleZH
			item.SummaryZH = t.SummaryZH
		}
		items = append(items, item)
	}
	return items, nil
}

func interpretationPresence(repo domain.InterpretationRepository, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	interps, err := repo.GetByPaperIDs(ids)
	if err != nil {
		return nil, err
	}
	present := make(map[uuid.UUID]bool, len(interps))
	for id, interp := range interps {
		present[id] = interp != nil && interp.Content != ""
	}
	return present, nil
}

func poolIDs(pool []domain.ScoredPaper) []uuid.UUID {
	ids := make([]uuid.UUID, len(pool))
	for i, sp := range pool {
		ids[i] = sp.PaperID
	}
	return ids
}

func scoredFromRanking(r *domain.UserPaperRanking) []domain.ScoredPaper {
	scored := make([]domain.ScoredPaper, len(r.PaperIDs))
	for i, id := range r.PaperIDs {
		score := 0.0
		if i < len(r.Scores) {
			score = r.Scores[i]
		}
		scored[i] = domain.ScoredPaper{PaperID: id, Score: score}
	}
	return scored
}
