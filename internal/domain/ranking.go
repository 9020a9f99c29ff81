package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate pool filter types. Each maps to a category predicate in the
// candidate usecase.
const (
	FilterCS      = "cs"
	FilterAIMLCV  = "ai-ml-cv"
	FilterMath    = "math"
	FilterPhysics = "physics"
	FilterAll     = "all"
)

const arxivDayPrefix = "arxiv_day_"

// PoolBatchID maps a pool date to a deterministic UUIDv5 so the bucket
// identity is reproducible across machines and reruns.
func PoolBatchID(date time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte("candidate_pool_date_"+date.Format("2006-01-02")))
}

// ArxivDayKey renders the dynamic source key for a pool date, always in
// the undashed YYYYMMDD form.
func ArxivDayKey(date time.Time) string {
	return arxivDayPrefix + date.Format("20060102")
}

// ParseArxivDayKey extracts the pool date from a dynamic source key.
func ParseArxivDayKey(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, arxivDayPrefix) {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", strings.TrimPrefix(key, arxivDayPrefix))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeConferenceKey prefixes bare conference ids with "conf/".
func NormalizeConferenceKey(key string) string {
	if strings.HasPrefix(key, "conf/") {
		return key
	}
	return "conf/" + key
}

type CandidatePoolRepository interface {
	// Rebuild deletes all rows for (batchID, filterType) and inserts the
	// given ids in order, in one transaction.
	Rebuild(batchID uuid.UUID, filterType string, paperIDs []uuid.UUID) error
	Read(batchID uuid.UUID, filterType string) ([]uuid.UUID, error)
}

type UserPaperRanking struct {
	UserID    uuid.UUID   `json:"user_id"`
	SourceKey string      `json:"source_key"`
	PoolDate  time.Time   `json:"pool_date"`
	PaperIDs  []uuid.UUID `json:"paper_ids"`
	Scores    []float64   `json:"scores"`
	CreatedAt time.Time   `json:"created_at"`
}

type RankingRepository interface {
	// Replace swaps the (user, source_key) row atomically so readers
	// never observe a torn ranking.
	Replace(r *UserPaperRanking) error
	Get(userID uuid.UUID, sourceKey string) (*UserPaperRanking, error)
	DeleteDynamicBefore(cutoff time.Time) (int64, error)
}

type ScoredPaper struct {
	PaperID uuid.UUID `json:"paper_id"`
	Score   float64   `json:"score"`
}

const (
	ShowModePool = "pool"
	ShowModeAll  = "all"
)

type PoolSettings struct {
	UserID          uuid.UUID `json:"user_id"`
	SourceKey       string    `json:"source_key"`
	PoolRatio       float64   `json:"pool_ratio"`
	MaxPoolSize     int       `json:"max_pool_size"`
	ShowMode        string    `json:"show_mode"`
	FilterNoContent bool      `json:"filter_no_content"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultPoolSettings are returned when a user has not customized a source.
func DefaultPoolSettings(userID uuid.UUID, sourceKey string) *PoolSettings {
	return &PoolSettings{
		UserID:      userID,
		SourceKey:   sourceKey,
		PoolRatio:   1.0,
		MaxPoolSize: 500,
		ShowMode:    ShowModePool,
	}
}

// Validate enforces the documented ranges.
func (s *PoolSettings) Validate() error {
	if s.PoolRatio < 0 || s.PoolRatio > 1 {
		return fmt.Errorf("pool_ratio must be in [0,1], got %v", s.PoolRatio)
	}
	if s.MaxPoolSize < 10 || s.MaxPoolSize > 10000 {
		return fmt.Errorf("max_pool_size must be in [10,10000], got %d", s.MaxPoolSize)
	}
	if s.ShowMode != ShowModePool && s.ShowMode != ShowModeAll {
		return fmt.Errorf("show_mode must be %q or %q, got %q", ShowModePool, ShowModeAll, s.ShowMode)
	}
	return nil
}

type PoolSettingsRepository interface {
	Get(userID uuid.UUID, sourceKey string) (*PoolSettings, error)
	Upsert(settings *PoolSettings) error
	ListByUser(userID uuid.UUID) ([]*PoolSettings, error)
}
