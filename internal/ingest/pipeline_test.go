package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscout/internal/fetcher"
	"reelscout/internal/store"
	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/filter"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func daysAgo(n int) string {
	return fixedNow.Add(-time.Duration(n) * 24 * time.Hour).Format(time.RFC3339)
}

type fakeFetcher struct {
	mu    sync.Mutex
	posts map[string][]models.RawPost
	fail  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		posts: make(map[string][]models.RawPost),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, src models.Source) (fetcher.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src.Key]++
	if err := f.fail[src.Key]; err != nil {
		return fetcher.Result{Attempts: 3}, err
	}
	return fetcher.Result{Posts: f.posts[src.Key], Attempts: 1}, nil
}

type fixture struct {
	store   *store.Store
	project *models.Project
	fetch   *fakeFetcher
	log     *logger.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1, LogLevel: "silent"}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := store.OpenDialector(sqlite.Open(dsn), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	p, _, err := s.Projects.Create(context.Background(), "acme")
	require.NoError(t, err)

	return &fixture{store: s, project: p, fetch: newFakeFetcher(), log: logger.NewTestLogger()}
}

func (fx *fixture) addSource(t *testing.T, kind models.SourceKind, key string) *models.Source {
	t.Helper()
	src, _, err := fx.store.Sources.Add(context.Background(), fx.project.ID, kind, key, "")
	require.NoError(t, err)
	return src
}

func (fx *fixture) pipeline(workers int) *Pipeline {
	return New(fx.store.Sources, fx.store.Reels, fx.fetch, Options{Policy: filter.DefaultPolicy(), Workers: workers}, fx.log)
}

func (fx *fixture) run(t *testing.T, p *Pipeline) *Summary {
	t.Helper()
	summary, err := p.RunProject(context.Background(), fx.project, "", clock)
	require.NoError(t, err)
	return summary
}

func viral(url string, views int, age int) models.RawPost {
	return models.RawPost{
		"url":            url,
		"videoViewCount": float64(views),
		"timestamp":      daysAgo(age),
		"type":           "Video",
		"ownerUsername":  "shopname",
	}
}

func TestRunStoresAcceptedPosts(t *testing.T) {
	fx := newFixture(t)
	comp := fx.addSource(t, models.SourceKindCompetitor, "shopname")
	tag := fx.addSource(t, models.SourceKindHashtag, "skincare")

	fx.fetch.posts["shopname"] = []models.RawPost{
		viral("https://x/reel/1", 75000, 5),
		viral("https://x/reel/2", 10000, 2),
		viral("https://x/reel/3", 90000, 30),
		{"videoViewCount": 80000.0, "timestamp": daysAgo(1)},
	}
	fx.fetch.posts["skincare"] = []models.RawPost{
		viral("https://x/reel/4", 120000, 1),
		{"url": "https://x/reel/5", "likesCount": 4000.0, "timestamp": daysAgo(1)},
	}

	summary := fx.run(t, fx.pipeline(2))

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.SourcesProcessed)
	assert.Zero(t, summary.SourcesFailed)
	assert.Equal(t, 6, summary.Fetched)
	assert.Equal(t, 2, summary.Inserted)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Filtered[filter.ReasonBelowMinViews])
	assert.Equal(t, 1, summary.Filtered[filter.ReasonTooOld])
	assert.Equal(t, 1, summary.Filtered[filter.ReasonViewsUnavailable])
	assert.Equal(t, 3, summary.FilteredTotal())

	require.Len(t, summary.Sources, 2)
	assert.Equal(t, comp.ID, summary.Sources[0].SourceID)
	assert.Equal(t, tag.ID, summary.Sources[1].SourceID)

	reel, err := fx.store.Reels.GetByURL(context.Background(), "https://x/reel/1")
	require.NoError(t, err)
	require.NotNil(t, reel)
	assert.True(t, reel.AttributedTo(models.SourceKindCompetitor, comp.ID))
	assert.Equal(t, models.ViewsOriginDirect, reel.ViewsOrigin)

	reel, err = fx.store.Reels.GetByURL(context.Background(), "https://x/reel/4")
	require.NoError(t, err)
	assert.True(t, reel.AttributedTo(models.SourceKindHashtag, tag.ID))

	for _, id := range []uint{comp.ID, tag.ID} {
		src, err := fx.store.Sources.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, src.LastScrapedAt)
		assert.True(t, fixedNow.Equal(*src.LastScrapedAt))
	}
	assert.True(t, fx.log.HasMessage("Run finished"))
}

func TestRunIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.addSource(t, models.SourceKindHashtag, "skincare")

	// both sources see the same post
	shared := viral("https://x/reel/abc", 75000, 5)
	fx.fetch.posts["shopname"] = []models.RawPost{shared, viral("https://x/reel/def", 60000, 3)}
	fx.fetch.posts["skincare"] = []models.RawPost{shared}

	p := fx.pipeline(1)
	first := fx.run(t, p)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 1, first.Skipped)

	count, err := fx.store.Reels.Count(context.Background(), fx.project.ID)
	require.NoError(t, err)

	second := fx.run(t, p)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Skipped)
	assert.NotEqual(t, first.RunID, second.RunID)

	again, err := fx.store.Reels.Count(context.Background(), fx.project.ID)
	require.NoError(t, err)
	assert.Equal(t, count, again)
	assert.Equal(t, int64(2), again)
}

func TestRunToleratesProviderFailure(t *testing.T) {
	fx := newFixture(t)
	broken := fx.addSource(t, models.SourceKindCompetitor, "broken")
	fx.addSource(t, models.SourceKindCompetitor, "shopname")

	fx.fetch.fail["broken"] = errs.Provider(errs.ErrorTypeTimeout, 0, "provider call timed out", nil)
	fx.fetch.posts["shopname"] = []models.RawPost{viral("https://x/reel/1", 75000, 5)}

	summary := fx.run(t, fx.pipeline(2))
	assert.Equal(t, 1, summary.SourcesProcessed)
	assert.Equal(t, 1, summary.SourcesFailed)
	assert.Equal(t, 1, summary.Inserted)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "competitor/broken")

	require.Len(t, summary.Sources, 2)
	assert.True(t, summary.Sources[0].Failed())
	assert.Equal(t, 3, summary.Sources[0].Attempts)

	src, err := fx.store.Sources.Get(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Nil(t, src.LastScrapedAt)
	assert.True(t, fx.log.HasMessage("Source failed"))
}

type failingUpserter struct{}

func (failingUpserter) Upsert(ctx context.Context, reel *models.Reel) (store.UpsertResult, error) {
	return store.UpsertResult{}, errs.Storage("connection refused", nil)
}

func TestRunStopsOnStorageError(t *testing.T) {
	fx := newFixture(t)
	fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.fetch.posts["shopname"] = []models.RawPost{viral("https://x/reel/1", 75000, 5)}

	p := New(fx.store.Sources, failingUpserter{}, fx.fetch, Options{Policy: filter.DefaultPolicy(), Workers: 1}, fx.log)
	summary, err := p.RunProject(context.Background(), fx.project, "", clock)
	require.Error(t, err)
	assert.True(t, errs.IsStorage(err))
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.SourcesFailed)
	assert.Equal(t, 1, summary.Fetched)
}

func TestRunStoresOnePostReachedThroughDifferentURLShapes(t *testing.T) {
	fx := newFixture(t)
	fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.addSource(t, models.SourceKindHashtag, "skincare")

	byPostURL := viral("https://www.instagram.com/p/ABC123/", 75000, 5)
	byPostURL["shortCode"] = "ABC123"
	byCode := viral("", 75000, 5)
	delete(byCode, "url")
	byCode["shortCode"] = "ABC123"
	fx.fetch.posts["shopname"] = []models.RawPost{byPostURL, byCode}
	fx.fetch.posts["skincare"] = []models.RawPost{viral("https://www.instagram.com/reel/ABC123/?igsh=zz", 75000, 5)}

	summary := fx.run(t, fx.pipeline(1))
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 2, summary.Skipped)

	n, err := fx.store.Reels.Count(context.Background(), fx.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reel, err := fx.store.Reels.GetByURL(context.Background(), "https://www.instagram.com/reel/ABC123/")
	require.NoError(t, err)
	assert.NotNil(t, reel)
}

// cancellingUpserter cancels the run after the first row it writes
type cancellingUpserter struct {
	Upserter
	cancel context.CancelFunc
}

func (u cancellingUpserter) Upsert(ctx context.Context, reel *models.Reel) (store.UpsertResult, error) {
	res, err := u.Upserter.Upsert(ctx, reel)
	u.cancel()
	return res, err
}

func TestRunCountsRowsOfInterruptedSource(t *testing.T) {
	fx := newFixture(t)
	src := fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.fetch.posts["shopname"] = []models.RawPost{
		viral("https://x/reel/1", 75000, 5),
		viral("https://x/reel/2", 80000, 3),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reels := cancellingUpserter{Upserter: fx.store.Reels, cancel: cancel}
	p := New(fx.store.Sources, reels, fx.fetch, Options{Policy: filter.DefaultPolicy(), Workers: 1}, fx.log)

	summary, err := p.RunProject(ctx, fx.project, "", clock)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)

	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.SourcesInterrupted)
	assert.Zero(t, summary.SourcesProcessed)
	assert.Zero(t, summary.SourcesFailed)
	assert.Empty(t, summary.Errors)
	require.Len(t, summary.Sources, 1)
	assert.True(t, summary.Sources[0].Interrupted)
	assert.False(t, summary.Sources[0].Failed())

	n, err := fx.store.Reels.Count(context.Background(), fx.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(summary.Inserted), n)

	stored, err := fx.store.Sources.Get(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastScrapedAt)
}

func TestRunKindFilter(t *testing.T) {
	fx := newFixture(t)
	fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.addSource(t, models.SourceKindHashtag, "skincare")

	summary, err := fx.pipeline(1).RunProject(context.Background(), fx.project, models.SourceKindHashtag, clock)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SourcesProcessed)
	assert.Zero(t, fx.fetch.calls["shopname"])
	assert.Equal(t, 1, fx.fetch.calls["skincare"])
}

func TestRunRefusesInactiveProject(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Projects.SetActive(context.Background(), fx.project.ID, false))
	fx.project.Active = false

	_, err := fx.pipeline(1).RunProject(context.Background(), fx.project, "", clock)
	assert.True(t, errs.IsValidation(err))

	_, err = fx.pipeline(1).RunProject(context.Background(), nil, "", clock)
	assert.True(t, errs.IsValidation(err))
}

func TestRunRejectsInvalidPolicy(t *testing.T) {
	fx := newFixture(t)
	policy := filter.DefaultPolicy()
	policy.MaxAgeDays = 0
	p := New(fx.store.Sources, fx.store.Reels, fx.fetch, Options{Policy: policy}, fx.log)

	_, err := p.RunProject(context.Background(), fx.project, "", clock)
	assert.True(t, errs.IsValidation(err))
}

func TestRunCancelled(t *testing.T) {
	fx := newFixture(t)
	fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.fetch.posts["shopname"] = []models.RawPost{viral("https://x/reel/1", 75000, 5)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := fx.pipeline(1).Run(ctx, models.NewProjectContext(fx.project, clock), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Zero(t, summary.SourcesProcessed)
	assert.Zero(t, summary.Inserted)
}

func TestRunEmptyProject(t *testing.T) {
	fx := newFixture(t)
	summary := fx.run(t, fx.pipeline(3))
	assert.Zero(t, summary.SourcesProcessed)
	assert.Empty(t, summary.Sources)
	assert.Equal(t, 0, summary.Stats()["inserted"])
}

func TestRunProgressHooks(t *testing.T) {
	fx := newFixture(t)
	fx.addSource(t, models.SourceKindCompetitor, "shopname")
	fx.addSource(t, models.SourceKindHashtag, "skincare")
	fx.fetch.fail["skincare"] = errs.Provider(errs.ErrorTypeServerError, 503, "unavailable", nil)

	var started int
	var done []string
	opts := Options{
		Policy:   filter.DefaultPolicy(),
		Workers:  2,
		OnStart:  func(n int) { started = n },
		OnSource: func(r SourceResult) { done = append(done, r.Key) },
	}
	p := New(fx.store.Sources, fx.store.Reels, fx.fetch, opts, fx.log)
	fx.run(t, p)

	assert.Equal(t, 2, started)
	assert.ElementsMatch(t, []string{"shopname", "skincare"}, done)
}
