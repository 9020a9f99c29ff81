package usecase

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/flopap/backend/internal/config"
	"github.com/flopap/backend/internal/domain"
	"github.com/flopap/backend/internal/provider"
	"github.com/flopap/backend/pkg/arxiv"
)

var arxivIDPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)

const (
	minTitleLen   = 10
	minSummaryLen = 50
)

// newYorkTZ is where arXiv's announcement day boundary lives.
var newYorkTZ = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type DroppedRecord struct {
	ArxivID string `json:"arxiv_id"`
	Reason  string `json:"reason"`
}

type IngestReport struct {
	BatchID        string          `json:"batch_id"`
	Fetched        int             `json:"fetched"`
	Valid          int             `json:"valid"`
	Dropped        []DroppedRecord `json:"dropped,omitempty"`
	Embedded       int             `json:"embedded"`
	EmbedFailures  int             `json:"embed_failures"`
	UsedFallback   bool            `json:"used_fallback"`
	EffectiveQuery string          `json:"effective_query"`
}

// IngestUsecase pulls one day of arXiv submissions, validates and upserts
// them, then computes embeddings. Papers are durable before any embedding
// work starts, so a crash in between leaves recoverable embedding-less rows.
type IngestUsecase struct {
	papers     domain.PaperRepository
	batches    domain.IngestionBatchRepository
	embeddings domain.EmbeddingRepository
	client     *arxiv.Client
	pool       *provider.Pool
	arxivCfg   config.ArxivConfig
	embedCfg   config.EmbeddingConfig
	log        zerolog.Logger
}

func NewIngestUsecase(
	papers domain.PaperRepository,
	batches domain.IngestionBatchRepository,
	embeddings domain.EmbeddingRepository,
	client *arxiv.Client,
	pool *provider.Pool,
	arxivCfg config.ArxivConfig,
	embedCfg config.EmbeddingConfig,
	log zerolog.Logger,
) *IngestUsecase {
	return &IngestUsecase{
		papers:     papers,
		batches:    batches,
		embeddings: embeddings,
		client:     client,
		pool:       pool,
		arxivCfg:   arxivCfg,
		embedCfg:   embedCfg,
		log:        log,
	}
}

func (u *IngestUsecase) IngestForDate(ctx context.Context, targetDate time.Time) (*IngestReport, error) {
	query := arxiv.DateWindowQuery(targetDate, u.arxivCfg.Query)
	report := &IngestReport{EffectiveQuery: query}

	fetched, err := u.fetchWindow(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(fetched) == 0 {
		u.log.Info().Str("date", targetDate.Format("2006-01-02")).Msg("date window empty, scanning recent submissions")
		report.UsedFallback = true
		fetched, err = u.fetchFallback(ctx, targetDate)
		if err != nil {
			return nil, err
		}
	}
	report.Fetched = len(fetched)

	valid := make([]*domain.Paper, 0, len(fetched))
	for _, paper := range fetched {
		if reason := validatePaper(paper); reason != "" {
			report.Dropped = append(report.Dropped, DroppedRecord{ArxivID: paper.ArxivID, Reason: reason})
			u.log.Warn().Str("arxiv_id", paper.ArxivID).Str("reason", reason).Msg("dropping invalid record")
			continue
		}
		valid = append(valid, paper)
	}
	report.Valid = len(valid)

	batch := &domain.IngestionBatch{
		SourceDate: targetDate,
		Query:      query,
		ItemCount:  len(valid),
	}
	if err := u.batches.Create(batch); err != nil {
		return nil, fmt.Errorf("create ingestion batch: %w", err)
	}
	report.BatchID = batch.ID.String()

	for _, paper := range valid {
		paper.IngestionBatchID = &batch.ID
		if err := u.papers.Upsert(paper); err != nil {
			// One bad row never aborts the batch.
			u.log.Warn().Err(err).Str("arxiv_id", paper.ArxivID).Msg("paper upsert failed")
		}
	}

	embedded, failures := u.EmbedPapers(ctx, valid)
	report.Embedded = embedded
	report.EmbedFailures = failures

	return report, nil
}

func (u *IngestUsecase) fetchWindow(ctx context.Context, query string) ([]*domain.Paper, error) {
	var all []*domain.Paper
	pageSize := u.arxivCfg.PageSize
	maxResults := u.arxivCfg.MaxResults

	for start := 0; start < maxResults; start += pageSize {
		result, err := u.client.SearchWindow(ctx, query, start, pageSize)
		if err != nil {
			return nil, fmt.Errorf("arxiv window page at %d: %w", start, err)
		}
		all = append(all, result.Papers...)
		if len(result.Papers) < pageSize || len(all) >= result.TotalResults {
			break
		}
	}

	if len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

// fetchFallback scans the newest submissions in descending order and keeps
// ids whose New York publication date matches the target. It stops after a
// configured streak of batches contributing nothing, or at the max offset.
func (u *IngestUsecase) fetchFallback(ctx context.Context, targetDate time.Time) ([]*domain.Paper, error) {
	wantDay := targetDate.Format("2006-01-02")
	pageSize := u.arxivCfg.PageSize

	var matched []*domain.Paper
	emptyStreak := 0
	for start := 0; start < u.arxivCfg.FallbackMaxOffset; start += pageSize {
		result, err := u.client.ScanRecent(ctx, start, pageSize)
		if err != nil {
			return nil, fmt.Errorf("arxiv fallback scan at %d: %w", start, err)
		}
		if len(result.Papers) == 0 {
			break
		}

		found := 0
		for _, paper := range result.Papers {
			if paper.SubmittedAt.In(newYorkTZ).Format("2006-01-02") == wantDay {
				matched = append(matched, paper)
				found++
			}
		}

		if found == 0 {
			emptyStreak++
			if emptyStreak >= u.arxivCfg.FallbackEmptyStreak {
				break
			}
		} else {
			emptyStreak = 0
		}
	}
	return matched, nil
}

// validatePaper returns an empty string for a valid record, otherwise the
// drop reason.
func validatePaper(p *domain.Paper) string {
	if !arxivIDPattern.MatchString(p.ArxivID) {
		return fmt.Sprintf("arxiv id %q does not match expected format", p.ArxivID)
	}
	if utf8.RuneCountInString(p.Title) < minTitleLen {
		return "title too short"
	}
	if utf8.RuneCountInString(p.Summary) < minSummaryLen {
		return "summary too short"
	}
	if len(p.AuthorNames()) == 0 {
		return "no authors"
	}
	if len(p.Categories) == 0 {
		return "no categories"
	}
	if p.SubmittedAt.IsZero() {
		return "missing submission timestamp"
	}
	return ""
}

// EmbedPapers runs after the paper upserts committed. Work is split across
// the provider pool; a failed batch is logged and skipped, never fatal.
func (u *IngestUsecase) EmbedPapers(ctx context.Context, papers []*domain.Paper) (embedded, failures int) {
	if len(papers) == 0 || u.pool == nil {
		return 0, 0
	}

	batchSize := u.embedCfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	for i := 0; i < len(papers); i += batchSize {
		end := i + batchSize
		if end > len(papers) {
			end = len(papers)
		}
		batch := papers[i:end]

		texts := make([]string, len(batch))
		for j, paper := range batch {
			texts[j] = paper.Title + "\n\n" + paper.Summary
		}

		client := u.pool.Client(i / batchSize)
		var vectors [][]float32
		err := provider.Retry(ctx, 0, 0, 0, nil, func() error {
			callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			var embedErr error
			vectors, embedErr = client.Embed(callCtx, texts)
			return embedErr
		})
		if err != nil {
			u.log.Warn().Err(err).Int("batch_start", i).Msg("embedding batch failed")
			failures += len(batch)
			continue
		}

		for j, paper := range batch {
			emb := &domain.PaperEmbedding{
				PaperID:   paper.ID,
				ModelName: u.embedCfg.Model,
				Vector:    vectors[j],
			}
			if err := u.embeddings.Upsert(emb); err != nil {
				u.log.Warn().Err(err).Str("paper_id", paper.ID.String()).Msg("embedding upsert failed")
				failures++
				continue
			}
			embedded++
		}
	}
	return embedded, failures
}
