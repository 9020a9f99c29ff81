package usecase

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
)

// Scorer ranks candidate papers for a user with a three-strategy scorer,
// picked by the highest-precedence available signal: embedding profile,
// declared preferences, then cold start.
type Scorer struct {
	papers     domain.PaperRepository
	embeddings domain.EmbeddingRepository
	feedback   domain.FeedbackRepository
	profiles   domain.UserProfileRepository
	embedModel string

	now  func() time.Time
	rand func() float64
}

func NewScorer(
	papers domain.PaperRepository,
	embeddings domain.EmbeddingRepository,
	feedback domain.FeedbackRepository,
	profiles domain.UserProfileRepository,
	embedModel string,
) *Scorer {
	return &Scorer{
		papers:     papers,
		embeddings: embeddings,
		feedback:   feedback,
		profiles:   profiles,
		embedModel: embedModel,
		now:        time.Now,
		rand:       rand.Float64,
	}
}

// RankForUser batch-loads candidate papers and embeddings (one query each),
// scores every paper once, and returns the list sorted by score descending.
func (s *Scorer) RankForUser(userID uuid.UUID, candidateIDs []uuid.UUID) ([]domain.ScoredPaper, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	papers, err := s.papers.GetByIDs(candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	vectors, err := s.embeddings.GetByPaperIDs(candidateIDs, s.embedModel)
	if err != nil {
		return nil, fmt.Errorf("load candidate embeddings: %w", err)
	}

	userVec, err := s.userVector(userID)
	if err != nil {
		return nil, err
	}

	var profile *domain.UserProfile
	if userVec == nil {
		profile, err = s.profiles.Get(userID)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
	}

	now := s.now()
	scored := make([]domain.ScoredPaper, 0, len(papers))
	for _, paper := range papers {
		scored = append(scored, domain.ScoredPaper{
			PaperID: paper.ID,
			Score:   s.scorePaper(paper, vectors[paper.ID], userVec, profile, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

func (s *Scorer) scorePaper(paper *domain.Paper, paperVec, userVec []float32, profile *domain.UserProfile, now time.Time) float64 {
	rec := recencyBonus(paper.SubmittedAt, now)

	if userVec != nil && paperVec != nil {
		return 0.5 + dot(userVec, paperVec) + rec
	}
	if profile.HasPreferences() {
		return profileScore(profile, paper, rec)
	}
	return s.rand() + 0.3*rec
}

// userVector derives the profile vector as the L2-normalized mean of
// embeddings of papers the user liked or bookmarked. nil when the user has
// no usable positive feedback.
func (s *Scorer) userVector(userID uuid.UUID) ([]float32, error) {
	likedIDs, err := s.feedback.LikedOrBookmarkedPaperIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("load positive feedback: %w", err)
	}
	if len(likedIDs) == 0 {
		return nil, nil
	}

	vectors, err := s.embeddings.GetByPaperIDs(likedIDs, s.embedModel)
	if err != nil {
		return nil, fmt.Errorf("load feedback embeddings: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	var mean []float32
	for _, vec := range vectors {
		if mean == nil {
			mean = make([]float32, len(vec))
		}
		if len(vec) != len(mean) {
			continue
		}
		for i, v := range vec {
			mean[i] += v
		}
	}

	n := float32(len(vectors))
	var norm float64
	for i := range mean {
		mean[i] /= n
		norm += float64(mean[i]) * float64(mean[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, nil
	}
	for i := range mean {
		mean[i] = float32(float64(mean[i]) / norm)
	}
	return mean, nil
}

// profileScore blends category and keyword overlap with recency:
// 0.3 + category_match*0.5 + keyword_match*0.3 + 0.5*recency.
func profileScore(profile *domain.UserProfile, paper *domain.Paper, rec float64) float64 {
	catMatch := 0.0
	if len(paper.Categories) > 0 && len(profile.InterestedCategories) > 0 {
		wanted := make(map[string]bool, len(profile.InterestedCategories))
		for _, c := range profile.InterestedCategories {
			wanted[c] = true
		}
		matched := 0
		for _, c := range paper.Categories {
			if wanted[c] {
				matched++
			}
		}
		catMatch = math.Min(float64(matched)/float64(len(paper.Categories)), 1)
	}

	kwMatch := 0.0
	if len(profile.ResearchKeywords) > 0 {
		haystack := strings.ToLower(paper.Title + " " + paper.Summary)
		matched := 0
		for _, kw := range profile.ResearchKeywords {
			if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
				matched++
			}
		}
		kwMatch = math.Min(float64(matched)/float64(len(profile.ResearchKeywords)), 1)
	}

	return 0.3 + catMatch*0.5 + kwMatch*0.3 + 0.5*rec
}

// recencyBonus decays linearly from 1 to 0 over 30 days since submission.
func recencyBonus(submittedAt, now time.Time) float64 {
	days := now.Sub(submittedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Max(0, 1-math.Min(days/30, 1))
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
