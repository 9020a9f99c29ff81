package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flopap/backend/internal/domain"
)

// In-memory repository fakes shared by the usecase tests.

type fakePaperRepo struct {
	mu     sync.Mutex
	papers map[uuid.UUID]*domain.Paper
}

func newFakePaperRepo() *fakePaperRepo {
	return &fakePaperRepo{papers: make(map[uuid.UUID]*domain.Paper)}
}

func (f *fakePaperRepo) add(p *domain.Paper) *domain.Paper {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.papers[p.ID] = p
	return p
}

func (f *fakePaperRepo) Upsert(p *domain.Paper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.papers {
		if existing.ArxivID == p.ArxivID {
			p.ID = existing.ID
			f.papers[p.ID] = p
			return nil
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.papers[p.ID] = p
	return nil
}

func (f *fakePaperRepo) GetByID(id uuid.UUID) (*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.papers[id], nil
}

func (f *fakePaperRepo) GetByArxivID(arxivID string) (*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.papers {
		if p.ArxivID == arxivID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePaperRepo) GetByIDs(ids []uuid.UUID) ([]*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Paper
	for _, id := range ids {
		if p := f.papers[id]; p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaperRepo) ListBySubmittedDate(date time.Time) ([]*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := date.Format("2006-01-02")
	var out []*domain.Paper
	for _, p := range f.papers {
		if p.SubmittedAt.Format("2006-01-02") == want {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArxivID < out[j].ArxivID })
	return out, nil
}

func (f *fakePaperRepo) ListBySource(source string) ([]*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Paper
	for _, p := range f.papers {
		if p.Source == source {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArxivID < out[j].ArxivID })
	return out, nil
}

func (f *fakePaperRepo) ListRecent(since time.Time, limit int) ([]*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Paper
	for _, p := range f.papers {
		if p.SubmittedAt.After(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePaperRepo) Delete(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.papers, id)
	return nil
}

type fakeEmbeddingRepo struct {
	mu      sync.Mutex
	vectors map[uuid.UUID][]float32
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{vectors: make(map[uuid.UUID][]float32)}
}

func (f *fakeEmbeddingRepo) Upsert(emb *domain.PaperEmbedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[emb.PaperID] = emb.Vector
	return nil
}

func (f *fakeEmbeddingRepo) GetByPaperIDs(ids []uuid.UUID, modelName string) (map[uuid.UUID][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID][]float32)
	for _, id := range ids {
		if vec, ok := f.vectors[id]; ok {
			out[id] = vec
		}
	}
	return out, nil
}

type fakeFeedbackRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]map[uuid.UUID]map[domain.FeedbackKind]time.Time
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{rows: make(map[uuid.UUID]map[uuid.UUID]map[domain.FeedbackKind]time.Time)}
}

func (f *fakeFeedbackRepo) set(userID, paperID uuid.UUID, kind domain.FeedbackKind, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[userID] == nil {
		f.rows[userID] = make(map[uuid.UUID]map[domain.FeedbackKind]time.Time)
	}
	if f.rows[userID][paperID] == nil {
		f.rows[userID][paperID] = make(map[domain.FeedbackKind]time.Time)
	}
	f.rows[userID][paperID][kind] = at
}

func (f *fakeFeedbackRepo) Upsert(fb *domain.UserFeedback) error {
	at := fb.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	f.set(fb.UserID, fb.PaperID, fb.Kind, at)
	return nil
}

func (f *fakeFeedbackRepo) Delete(userID, paperID uuid.UUID, kind domain.FeedbackKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kinds := f.rows[userID][paperID]; kinds != nil {
		delete(kinds, kind)
	}
	return nil
}

func (f *fakeFeedbackRepo) DeleteKinds(userID, paperID uuid.UUID, kinds []domain.FeedbackKind) error {
	for _, kind := range kinds {
		f.Delete(userID, paperID, kind)
	}
	return nil
}

func (f *fakeFeedbackRepo) Exists(userID, paperID uuid.UUID, kind domain.FeedbackKind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[userID][paperID][kind]
	return ok, nil
}

func (f *fakeFeedbackRepo) Flags(userID, paperID uuid.UUID) (domain.FeedbackFlags, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := f.rows[userID][paperID]
	flags := domain.FeedbackFlags{}
	_, flags.Liked = kinds[domain.FeedbackLike]
	_, flags.Bookmarked = kinds[domain.FeedbackBookmark]
	_, flags.Disliked = kinds[domain.FeedbackDislike]
	return flags, nil
}

func (f *fakeFeedbackRepo) FlagsByPaperIDs(userID uuid.UUID, paperIDs []uuid.UUID) (map[uuid.UUID]domain.FeedbackFlags, error) {
	out := make(map[uuid.UUID]domain.FeedbackFlags)
	for _, id := range paperIDs {
		flags, _ := f.Flags(userID, id)
		out[id] = flags
	}
	return out, nil
}

func (f *fakeFeedbackRepo) PaperIDsWithAnyFeedback(userID uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for paperID, kinds := range f.rows[userID] {
		if len(kinds) > 0 {
			out[paperID] = true
		}
	}
	return out, nil
}

func (f *fakeFeedbackRepo) DislikedPaperIDs(userID uuid.UUID, since *time.Time) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for paperID, kinds := range f.rows[userID] {
		at, ok := kinds[domain.FeedbackDislike]
		if !ok {
			continue
		}
		if since != nil && at.Before(*since) {
			continue
		}
		out[paperID] = true
	}
	return out, nil
}

func (f *fakeFeedbackRepo) LikedOrBookmarkedPaperIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for paperID, kinds := range f.rows[userID] {
		if _, ok := kinds[domain.FeedbackLike]; ok {
			out = append(out, paperID)
			continue
		}
		if _, ok := kinds[domain.FeedbackBookmark]; ok {
			out = append(out, paperID)
		}
	}
	return out, nil
}

func (f *fakeFeedbackRepo) CountsSince(since time.Time) (map[uuid.UUID]domain.FeedbackCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]domain.FeedbackCounts)
	for _, byPaper := range f.rows {
		for paperID, kinds := range byPaper {
			counts := out[paperID]
			if at, ok := kinds[domain.FeedbackLike]; ok && at.After(since) {
				counts.Likes++
			}
			if at, ok := kinds[domain.FeedbackBookmark]; ok && at.After(since) {
				counts.Bookmarks++
			}
			out[paperID] = counts
		}
	}
	return out, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.UserProfile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[uuid.UUID]*domain.UserProfile)}
}

func (f *fakeProfileRepo) Get(userID uuid.UUID) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[userID], nil
}

func (f *fakeProfileRepo) Upsert(profile *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.UserID] = profile
	return nil
}

func (f *fakeProfileRepo) ListActiveUserIDs() ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id := range f.profiles {
		out = append(out, id)
	}
	return out, nil
}

type poolKey struct {
	batchID    uuid.UUID
	filterType string
}

type fakeCandidatePoolRepo struct {
	mu    sync.Mutex
	pools map[poolKey][]uuid.UUID
}

func newFakeCandidatePoolRepo() *fakeCandidatePoolRepo {
	return &fakeCandidatePoolRepo{pools: make(map[poolKey][]uuid.UUID)}
}

func (f *fakeCandidatePoolRepo) Rebuild(batchID uuid.UUID, filterType string, paperIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[poolKey{batchID, filterType}] = append([]uuid.UUID(nil), paperIDs...)
	return nil
}

func (f *fakeCandidatePoolRepo) Read(batchID uuid.UUID, filterType string) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[poolKey{batchID, filterType}], nil
}

type rankingKey struct {
	userID    uuid.UUID
	sourceKey string
}

type fakeRankingRepo struct {
	mu       sync.Mutex
	rankings map[rankingKey]*domain.UserPaperRanking
}

func newFakeRankingRepo() *fakeRankingRepo {
	return &fakeRankingRepo{rankings: make(map[rankingKey]*domain.UserPaperRanking)}
}

func (f *fakeRankingRepo) Replace(r *domain.UserPaperRanking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankings[rankingKey{r.UserID, r.SourceKey}] = r
	return nil
}

func (f *fakeRankingRepo) Get(userID uuid.UUID, sourceKey string) (*domain.UserPaperRanking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rankings[rankingKey{userID, sourceKey}], nil
}

func (f *fakeRankingRepo) DeleteDynamicBefore(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, r := range f.rankings {
		if _, ok := domain.ParseArxivDayKey(key.sourceKey); ok && r.PoolDate.Before(cutoff) {
			delete(f.rankings, key)
			n++
		}
	}
	return n, nil
}

type fakeTranslationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.PaperTranslation
}

func newFakeTranslationRepo() *fakeTranslationRepo {
	return &fakeTranslationRepo{rows: make(map[uuid.UUID]*domain.PaperTranslation)}
}

func (f *fakeTranslationRepo) Upsert(t *domain.PaperTranslation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t.PaperID] = t
	return nil
}

func (f *fakeTranslationRepo) GetByPaperID(paperID uuid.UUID) (*domain.PaperTranslation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[paperID], nil
}

func (f *fakeTranslationRepo) GetByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]*domain.PaperTranslation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]*domain.PaperTranslation)
	for _, id := range paperIDs {
		if t, ok := f.rows[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (f *fakeTranslationRepo) ListPapersMissing(source string, limit int) ([]*domain.Paper, error) {
	return nil, nil
}

type fakeInterpretationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.PaperInterpretation
}

func newFakeInterpretationRepo() *fakeInterpretationRepo {
	return &fakeInterpretationRepo{rows: make(map[uuid.UUID]*domain.PaperInterpretation)}
}

func (f *fakeInterpretationRepo) Upsert(i *domain.PaperInterpretation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[i.PaperID] = i
	return nil
}

func (f *fakeInterpretationRepo) GetByPaperID(paperID uuid.UUID) (*domain.PaperInterpretation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[paperID], nil
}

func (f *fakeInterpretationRepo) GetByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]*domain.PaperInterpretation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]*domain.PaperInterpretation)
	for _, id := range paperIDs {
		if i, ok := f.rows[id]; ok {
			out[id] = i
		}
	}
	return out, nil
}

func (f *fakeInterpretationRepo) ListPapersMissing(source string, limit int) ([]*domain.Paper, error) {
	return nil, nil
}

type fakeInfographicRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.PaperInfographic
}

func newFakeInfographicRepo() *fakeInfographicRepo {
	return &fakeInfographicRepo{rows: make(map[uuid.UUID]*domain.PaperInfographic)}
}

func (f *fakeInfographicRepo) Upsert(g *domain.PaperInfographic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[g.PaperID] = g
	return nil
}

func (f *fakeInfographicRepo) GetByPaperID(paperID uuid.UUID) (*domain.PaperInfographic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[paperID], nil
}

func (f *fakeInfographicRepo) ExistsByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range paperIDs {
		if _, ok := f.rows[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type fakeVisualRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.PaperVisual
}

func newFakeVisualRepo() *fakeVisualRepo {
	return &fakeVisualRepo{rows: make(map[uuid.UUID]*domain.PaperVisual)}
}

func (f *fakeVisualRepo) Upsert(v *domain.PaperVisual) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[v.PaperID] = v
	return nil
}

func (f *fakeVisualRepo) GetByPaperID(paperID uuid.UUID) (*domain.PaperVisual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[paperID], nil
}

func (f *fakeVisualRepo) ExistsByPaperIDs(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range paperIDs {
		if _, ok := f.rows[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

type fakeTTSRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.PaperTTS
}

func newFakeTTSRepo() *fakeTTSRepo {
	return &fakeTTSRepo{rows: make(map[uuid.UUID]*domain.PaperTTS)}
}

func (f *fakeTTSRepo) Create(t *domain.PaperTTS) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.GeneratedAt.IsZero() {
		t.GeneratedAt = time.Now()
	}
	f.rows[t.ID] = t
	return nil
}

func (f *fakeTTSRepo) GetByHash(paperID uuid.UUID, voiceModel, contentHash string) (*domain.PaperTTS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.PaperID == paperID && t.VoiceModel == voiceModel && t.ContentHash == contentHash {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTTSRepo) GetLatestByPaper(paperID uuid.UUID, voiceModel string) (*domain.PaperTTS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.PaperTTS
	for _, t := range f.rows {
		if t.PaperID != paperID {
			continue
		}
		if voiceModel != "" && t.VoiceModel != voiceModel {
			continue
		}
		if latest == nil || t.GeneratedAt.After(latest.GeneratedAt) {
			latest = t
		}
	}
	return latest, nil
}

func (f *fakeTTSRepo) Delete(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeTTSRepo) ListPaperIDsWithAudio(paperIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range paperIDs {
		for _, t := range f.rows {
			if t.PaperID == id {
				out[id] = true
				break
			}
		}
	}
	return out, nil
}

type settingsKey struct {
	userID    uuid.UUID
	sourceKey string
}

type fakePoolSettingsRepo struct {
	mu   sync.Mutex
	rows map[settingsKey]*domain.PoolSettings
}

func newFakePoolSettingsRepo() *fakePoolSettingsRepo {
	return &fakePoolSettingsRepo{rows: make(map[settingsKey]*domain.PoolSettings)}
}

func (f *fakePoolSettingsRepo) Get(userID uuid.UUID, sourceKey string) (*domain.PoolSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[settingsKey{userID, sourceKey}], nil
}

func (f *fakePoolSettingsRepo) Upsert(settings *domain.PoolSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[settingsKey{settings.UserID, settings.SourceKey}] = settings
	return nil
}

func (f *fakePoolSettingsRepo) ListByUser(userID uuid.UUID) ([]*domain.PoolSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.PoolSettings
	for key, settings := range f.rows {
		if key.userID == userID {
			out = append(out, settings)
		}
	}
	return out, nil
}

// fakeCache records invalidations and serves nothing.
type fakeCache struct {
	mu          sync.Mutex
	pools       map[string][]domain.ScoredPaper
	invalidated int
	setCount    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{pools: make(map[string][]domain.ScoredPaper)}
}

func (f *fakeCache) GetPool(ctx context.Context, key string) ([]domain.ScoredPaper, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.pools[key]
	return items, ok
}

func (f *fakeCache) SetPool(ctx context.Context, key string, items []domain.ScoredPaper) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[key] = items
	f.setCount++
}

func (f *fakeCache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools = make(map[string][]domain.ScoredPaper)
	f.invalidated++
}

// fakeTTSEngine returns deterministic bytes derived from the input text.
type fakeTTSEngine struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	lastCtx context.Context
}

func (f *fakeTTSEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastCtx = ctx
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	return []byte("AUDIO:" + text[:min(16, len(text))]), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
