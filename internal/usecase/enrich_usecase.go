package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/flopap/backend/internal/domain"
	"github.com/flopap/backend/internal/provider"
	"github.com/flopap/backend/pkg/llm"
)

const (
	translationTemperature    = 0.3
	interpretationTemperature = 0.7
	interpretationMaxRetries  = 3
	interpretationMinChars    = 200
	interpretationMaxChars    = 2000
	chatTimeout               = 30 * time.Second
)

const translationPrompt = `请将以下论文的标题和摘要翻译成中文。严格按照如下两行格式输出，不要添加其他内容：
标题：<中文标题>
摘要：<中文摘要>

Title: %s

Abstract: %s`

const interpretationPrompt = `请用中文解读以下论文，输出三个以 ## 开头的小节：## 研究背景、## 方法、## 主要贡献。总长度控制在800到1200个汉字，不要使用代码块。

Title: %s

Abstract: %s`

// interpretationMarkers: an accepted response mentions at least two of
// these section concerns.
var interpretationMarkers = []string{"背景", "方法", "贡献", "结果", "影响"}

type EnrichReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// EnrichUsecase fans translation and interpretation work out over the
// provider pool, one worker per client, and upserts results per item so
// partial progress survives crashes.
type EnrichUsecase struct {
	translations    domain.TranslationRepository
	interpretations domain.InterpretationRepository
	pool            *provider.Pool
	log             zerolog.Logger
}

func NewEnrichUsecase(
	translations domain.TranslationRepository,
	interpretations domain.InterpretationRepository,
	pool *provider.Pool,
	log zerolog.Logger,
) *EnrichUsecase {
	return &EnrichUsecase{
		translations:    translations,
		interpretations: interpretations,
		pool:            pool,
		log:             log,
	}
}

// TranslateMissing selects papers without a complete translation and
// translates them.
func (u *EnrichUsecase) TranslateMissing(ctx context.Context, limit int) (*EnrichReport, error) {
	papers, err := u.translations.ListPapersMissing("", limit)
	if err != nil {
		return nil, fmt.Errorf("select untranslated papers: %w", err)
	}
	return u.TranslatePapers(ctx, papers)
}

func (u *EnrichUsecase) TranslatePapers(ctx context.Context, papers []*domain.Paper) (*EnrichReport, error) {
	report := &EnrichReport{Processed: len(papers)}
	u.fanOut(ctx, papers, report, u.translateOne)
	return report, nil
}

// InterpretMissing selects papers without an interpretation and generates
// one for each.
func (u *EnrichUsecase) InterpretMissing(ctx context.Context, limit int) (*EnrichReport, error) {
	papers, err := u.interpretations.ListPapersMissing("", limit)
	if err != nil {
		return nil, fmt.Errorf("select uninterpreted papers: %w", err)
	}
	return u.InterpretPapers(ctx, papers)
}

func (u *EnrichUsecase) InterpretPapers(ctx context.Context, papers []*domain.Paper) (*EnrichReport, error) {
	report := &EnrichReport{Processed: len(papers)}
	u.fanOut(ctx, papers, report, u.interpretOne)
	return report, nil
}

// fanOut splits papers across the pool's clients and runs one worker per
// group. Item failures are counted, never propagated.
func (u *EnrichUsecase) fanOut(ctx context.Context, papers []*domain.Paper, report *EnrichReport, work func(context.Context, *llm.Client, *domain.Paper) error) {
	if len(papers) == 0 || u.pool == nil {
		report.Failed = len(papers)
		return
	}

	var mu sync.Mutex
	groups := provider.Distribute(papers, u.pool.Size())

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		client := u.pool.Client(i)
		group := group
		g.Go(func() error {
			for _, paper := range group {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				err := work(gctx, client, paper)
				mu.Lock()
				if err != nil {
					report.Failed++
				} else {
					report.Succeeded++
				}
				mu.Unlock()
				if err != nil {
					u.log.Warn().Err(err).Str("paper_id", paper.ID.String()).Msg("enrichment item failed")
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (u *EnrichUsecase) translateOne(ctx context.Context, client *llm.Client, paper *domain.Paper) error {
	prompt := fmt.Sprintf(translationPrompt, paper.Title, paper.Summary)

	var raw string
	err := provider.Retry(ctx, 0, 0, 0, nil, func() error {
		callCtx, cancel := context.WithTimeout(ctx, chatTimeout)
		defer cancel()
		var chatErr error
		raw, chatErr = client.Chat(callCtx, "", prompt, translationTemperature)
		return chatErr
	})
	if err != nil {
		return err
	}

	titleZH, summaryZH, err := parseTranslation(raw)
	if err != nil {
		return err
	}

	return u.translations.Upsert(&domain.PaperTranslation{
		PaperID:   paper.ID,
		TitleZH:   titleZH,
		SummaryZH: summaryZH,
		ModelName: client.ChatModel(),
	})
}

// parseTranslation extracts the two labeled lines; either field empty is a
// failure.
func parseTranslation(raw string) (titleZH, summaryZH string, err error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		for _, label := range []string{"标题：", "标题:"} {
			if strings.HasPrefix(line, label) && titleZH == "" {
				titleZH = strings.TrimSpace(strings.TrimPrefix(line, label))
			}
		}
		for _, label := range []string{"摘要：", "摘要:"} {
			if strings.HasPrefix(line, label) && summaryZH == "" {
				summaryZH = strings.TrimSpace(strings.TrimPrefix(line, label))
			}
		}
	}
	if titleZH == "" || summaryZH == "" {
		return "", "", fmt.Errorf("translation response missing labeled fields")
	}
	return titleZH, summaryZH, nil
}

func (u *EnrichUsecase) interpretOne(ctx context.Context, client *llm.Client, paper *domain.Paper) error {
	prompt := fmt.Sprintf(interpretationPrompt, paper.Title, paper.Summary)

	var lastErr error
	for attempt := 1; attempt <= interpretationMaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, chatTimeout)
		raw, err := client.Chat(callCtx, "", prompt, interpretationTemperature)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		content := strings.TrimSpace(raw)
		if reason := rejectInterpretation(content); reason != "" {
			lastErr = fmt.Errorf("interpretation rejected: %s", reason)
			continue
		}

		return u.interpretations.Upsert(&domain.PaperInterpretation{
			PaperID:   paper.ID,
			Content:   content,
			Language:  "zh",
			ModelName: client.ChatModel(),
		})
	}
	return fmt.Errorf("interpretation failed after %d attempts: %w", interpretationMaxRetries, lastErr)
}

// rejectInterpretation returns a non-empty reason when the response misses
// the acceptance bar: at least two section markers, length within bounds,
// and no truncation tail.
func rejectInterpretation(content string) string {
	if n := len([]rune(content)); n < interpretationMinChars {
		return "too short"
	} else if n > interpretationMaxChars {
		return "too long"
	}

	markers := 0
	for _, marker := range interpretationMarkers {
		if strings.Contains(content, marker) {
			markers++
		}
	}
	if markers < 2 {
		return "missing section markers"
	}

	if strings.HasSuffix(content, "...") || strings.HasSuffix(content, "…") {
		return "truncated ending"
	}
	if strings.Count(content, "```")%2 != 0 {
		return "unmatched code fence"
	}
	if strings.Count(content, "{") != strings.Count(content, "}") {
		return "unmatched braces"
	}
	return ""
}
