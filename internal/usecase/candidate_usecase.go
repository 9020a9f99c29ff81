package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
)

var aimlcvCategories = []string{"cs.AI", "cs.LG", "cs.CV", "cs.CL", "cs.RO"}

// CandidateUsecase builds deterministic per-date candidate pools filtered
// by category predicates.
type CandidateUsecase struct {
	papers domain.PaperRepository
	pools  domain.CandidatePoolRepository
}

func NewCandidateUsecase(papers domain.PaperRepository, pools domain.CandidatePoolRepository) *CandidateUsecase {
	return &CandidateUsecase{papers: papers, pools: pools}
}

// PredicateFor returns the category predicate for a filter type.
func PredicateFor(filterType string) (func(*domain.Paper) bool, error) {
	switch filterType {
	case domain.FilterCS:
		return categoryPrefixPredicate("cs."), nil
	case domain.FilterAIMLCV:
		return func(p *domain.Paper) bool {
			for _, cat := range p.Categories {
				for _, want := range aimlcvCategories {
					if cat == want || strings.HasPrefix(cat, want) {
						return true
					}
				}
			}
			return false
		}, nil
	case domain.FilterMath:
		return categoryPrefixPredicate("math."), nil
	case domain.FilterPhysics:
		return categoryPrefixPredicate("physics.", "astro-ph.", "cond-mat."), nil
	case domain.FilterAll:
		return func(*domain.Paper) bool { return true }, nil
	}
	return nil, fmt.Errorf("unknown filter type %q", filterType)
}

func categoryPrefixPredicate(prefixes ...string) func(*domain.Paper) bool {
	return func(p *domain.Paper) bool {
		for _, cat := range p.Categories {
			for _, prefix := range prefixes {
				if strings.HasPrefix(cat, prefix) {
					return true
				}
			}
		}
		return false
	}
}

// BuildPool rebuilds the (date, filterType) bucket from papers submitted on
// that date. Delete-then-insert by the deterministic batch id makes the
// build idempotent. Returns the pool size.
func (u *CandidateUsecase) BuildPool(targetDate time.Time, filterType string) (int, error) {
	predicate, err := PredicateFor(filterType)
	if err != nil {
		return 0, err
	}

	papers, err := u.papers.ListBySubmittedDate(targetDate)
	if err != nil {
		return 0, fmt.Errorf("list papers for %s: %w", targetDate.Format("2006-01-02"), err)
	}

	var ids []uuid.UUID
	for _, paper := range papers {
		if predicate(paper) {
			ids = append(ids, paper.ID)
		}
	}

	if err := u.pools.Rebuild(domain.PoolBatchID(targetDate), filterType, ids); err != nil {
		return 0, fmt.Errorf("rebuild pool: %w", err)
	}
	return len(ids), nil
}

// Read returns the pool's paper ids in insertion order.
func (u *CandidateUsecase) Read(targetDate time.Time, filterType string) ([]uuid.UUID, error) {
	return u.pools.Read(domain.PoolBatchID(targetDate), filterType)
}
