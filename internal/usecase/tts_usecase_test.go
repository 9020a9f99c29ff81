package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flopap/backend/internal/domain"
)

func newTTSFixture(t *testing.T) (*TTSUsecase, *fakeTranslationRepo, *fakeInterpretationRepo, *fakeTTSRepo, *fakeTTSEngine) {
	t.Helper()
	papers := newFakePaperRepo()
	translations := newFakeTranslationRepo()
	interps := newFakeInterpretationRepo()
	ttsRows := newFakeTTSRepo()
	engine := &fakeTTSEngine{}

	uc := NewTTSUsecase(papers, translations, interps, ttsRows, engine, "zh-CN-XiaoxiaoNeural", t.TempDir(), 2, zerolog.Nop())
	uc.jitter = func() time.Duration { return 0 }
	uc.transcode = nil
	return uc, translations, interps, ttsRows, engine
}

func seedComposition(t *testing.T, translations *fakeTranslationRepo, interps *fakeInterpretationRepo, paperID uuid.UUID) {
	t.Helper()
	require.NoError(t, translations.Upsert(&domain.PaperTranslation{
		PaperID: paperID, TitleZH: "深度学习综述", SummaryZH: "摘要",
	}))
	require.NoError(t, interps.Upsert(&domain.PaperInterpretation{
		PaperID: paperID, Content: "## 研究背景\n内容\n## 方法\n内容", Language: "zh",
	}))
}

func TestGenerateForPaperWritesFileAndRow(t *testing.T) {
	uc, translations, interps, ttsRows, engine := newTTSFixture(t)
	paperID := uuid.New()
	seedComposition(t, translations, interps, paperID)

	row, err := uc.GenerateForPaper(context.Background(), paperID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, 1, engine.calls)

	// Stored path is a basename with the expected extension.
	require.Equal(t, row.FilePath, filepath.Base(row.FilePath))
	require.True(t, strings.HasSuffix(row.FilePath, ".opus"))

	data, err := os.ReadFile(filepath.Join(uc.baseDir, row.FilePath))
	require.NoError(t, err)
	require.EqualValues(t, len(data), row.FileSize)

	stored, err := ttsRows.GetByHash(paperID, uc.voice, row.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestGenerateForPaperDedupsByContentHash(t *testing.T) {
	uc, translations, interps, _, engine := newTTSFixture(t)
	paperID := uuid.New()
	seedComposition(t, translations, interps, paperID)

	first, err := uc.GenerateForPaper(context.Background(), paperID)
	require.NoError(t, err)
	second, err := uc.GenerateForPaper(context.Background(), paperID)
	require.NoError(t, err)

	// Same narration text: one synthesis call, one file, one row.
	require.Equal(t, 1, engine.calls)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.FilePath, second.FilePath)

	entries, err := os.ReadDir(uc.baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestGenerateForPaperRegeneratesWhenContentChanges(t *testing.T) {
	uc, translations, interps, _, engine := newTTSFixture(t)
	paperID := uuid.New()
	seedComposition(t, translations, interps, paperID)

	first, err := uc.GenerateForPaper(context.Background(), paperID)
	require.NoError(t, err)

	require.NoError(t, interps.Upsert(&domain.PaperInterpretation{
		PaperID: paperID, Content: "## 研究背景\n更新后的内容\n## 方法\n内容", Language: "zh",
	}))
	second, err := uc.GenerateForPaper(context.Background(), paperID)
	require.NoError(t, err)

	require.Equal(t, 2, engine.calls)
	require.NotEqual(t, first.ContentHash, second.ContentHash)
	require.NotEqual(t, first.FilePath, second.FilePath)
}

func TestGenerateForPaperRejectsIncompleteComposition(t *testing.T) {
	uc, translations, _, _, engine := newTTSFixture(t)
	paperID := uuid.New()
	require.NoError(t, translations.Upsert(&domain.PaperTranslation{
		PaperID: paperID, TitleZH: "标题", SummaryZH: "摘要",
	}))

	_, err := uc.GenerateForPaper(context.Background(), paperID)
	require.ErrorIs(t, err, ErrTTSNotReady)
	require.Zero(t, engine.calls)
}

func TestResolveDropsStaleRows(t *testing.T) {
	uc, translations, interps, ttsRows, _ := newTTSFixture(t)
	paperID := uuid.New()
	seedComposition(t, translations, interps, paperID)

	row, err := uc.GenerateForPaper(context.Background(), paperID)
	require.NoError(t, err)

	// Row whose file went missing is removed on access; the older valid row
	// is surfaced instead.
	stale := &domain.PaperTTS{
		PaperID:     paperID,
		VoiceModel:  uc.voice,
		ContentHash: "deadbeef",
		FilePath:    "gone.opus",
		GeneratedAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, ttsRows.Create(stale))

	resolved, err := uc.Resolve(paperID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, row.ID, resolved.ID)

	gone, err := ttsRows.GetByHash(paperID, uc.voice, "deadbeef")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestGenerateForPapersCountsSkipsAndReuse(t *testing.T) {
	uc, translations, interps, _, _ := newTTSFixture(t)

	ready := uuid.New()
	seedComposition(t, translations, interps, ready)
	notReady := uuid.New()

	report, err := uc.GenerateForPapers(context.Background(), []uuid.UUID{ready, notReady})
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Generated)
	require.Equal(t, 1, report.Skipped)

	report, err = uc.GenerateForPapers(context.Background(), []uuid.UUID{ready})
	require.NoError(t, err)
	require.Equal(t, 1, report.Reused)
	require.Zero(t, report.Generated)
}

type batchCtxKey struct{}

func TestGenerateForPapersPropagatesContext(t *testing.T) {
	uc, translations, interps, _, engine := newTTSFixture(t)
	paperID := uuid.New()
	seedComposition(t, translations, interps, paperID)

	ctx := context.WithValue(context.Background(), batchCtxKey{}, "batch")
	report, err := uc.GenerateForPapers(ctx, []uuid.UUID{paperID})
	require.NoError(t, err)
	require.Equal(t, 1, report.Generated)
	require.NotNil(t, engine.lastCtx)
	require.Equal(t, "batch", engine.lastCtx.Value(batchCtxKey{}))
}

func TestAudioPathValidation(t *testing.T) {
	uc, _, _, _, _ := newTTSFixture(t)

	path, err := uc.AudioPath("abc.opus")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(uc.baseDir, "abc.opus"), path)

	for _, bad := range []string{"../etc/passwd", "a/b.opus", "", ".", "abc.exe", "abc"} {
		_, err := uc.AudioPath(bad)
		require.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestBuildNarration(t *testing.T) {
	out := BuildNarration("标题", "## 背景\n**加粗** 内容")
	require.True(t, strings.HasPrefix(out, "标题。"))
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "*")
	require.Contains(t, out, "加粗 内容")

	// JSON-wrapped bilingual content unpacks to the Chinese field.
	wrapped := `{"zh": "中文解读", "en": "english"}`
	out = BuildNarration("标题", wrapped)
	require.Contains(t, out, "中文解读")
	require.NotContains(t, out, "english")
}
