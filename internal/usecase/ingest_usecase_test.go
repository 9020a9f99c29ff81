package usecase

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flopap/backend/internal/domain"
)

func validIngestPaper() *domain.Paper {
	authors, _ := json.Marshal([]domain.Author{{Name: "A. Author"}})
	return &domain.Paper{
		ArxivID:     "2608.01234",
		Title:       "A sufficiently long paper title",
		Summary:     strings.Repeat("An abstract sentence. ", 5),
		Authors:     authors,
		Categories:  []string{"cs.LG"},
		SubmittedAt: time.Date(2026, 8, 18, 14, 0, 0, 0, time.UTC),
	}
}

func TestValidatePaperAccepts(t *testing.T) {
	require.Empty(t, validatePaper(validIngestPaper()))
}

func TestValidatePaperRejects(t *testing.T) {
	cases := map[string]func(*domain.Paper){
		"arxiv id":  func(p *domain.Paper) { p.ArxivID = "abs/1234" },
		"title":     func(p *domain.Paper) { p.Title = "short" },
		"cjk title": func(p *domain.Paper) { p.Title = "四字标题" },
		"summary":   func(p *domain.Paper) { p.Summary = "too short" },
		"authors":   func(p *domain.Paper) { p.Authors = nil },
		"category":  func(p *domain.Paper) { p.Categories = nil },
		"timestamp": func(p *domain.Paper) { p.SubmittedAt = time.Time{} },
	}
	for name, mutate := range cases {
		p := validIngestPaper()
		mutate(p)
		require.NotEmpty(t, validatePaper(p), "expected %s mutation to be rejected", name)
	}
}

func TestArxivIDPattern(t *testing.T) {
	for _, ok := range []string{"2608.01234", "2608.0123", "2608.01234v2"} {
		require.True(t, arxivIDPattern.MatchString(ok), ok)
	}
	for _, bad := range []string{"cs/0112017", "2608.123", "2608.012345", "v2", "2608.01234v"} {
		require.False(t, arxivIDPattern.MatchString(bad), bad)
	}
}
