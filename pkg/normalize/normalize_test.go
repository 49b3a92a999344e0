package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/filter"
	"reelscout/pkg/models"
	"reelscout/pkg/resolve"
)

var (
	now  = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	pctx = models.ProjectContext{ProjectID: 1, ProjectName: "demo", Now: func() time.Time { return now }}
)

func competitor() *models.Source {
	return &models.Source{ID: 4, ProjectID: 1, Kind: models.SourceKindCompetitor, Key: "shopname", Active: true}
}

func TestNormalizeFullRecord(t *testing.T) {
	raw := models.RawPost{
		"url":            "https://x/reel/abc",
		"ownerUsername":  "ShopName",
		"videoViewCount": 75000.0,
		"likesCount":     0.0,
		"commentsCount":  12.0,
		"timestamp":      "2026-10-10T09:00:00.000Z",
		"caption":        "new drop",
		"displayUrl":     "https://cdn/thumb.jpg",
		"videoUrl":       "https://cdn/v.mp4",
		"type":           "Video",
		"extraField":     "kept in payload",
	}

	reel, err := Normalize(raw, competitor(), pctx, resolve.Options{})
	require.NoError(t, err)

	assert.Equal(t, "https://x/reel/abc", reel.URL)
	assert.Equal(t, uint(1), reel.ProjectID)
	assert.Equal(t, models.SourceKindCompetitor, reel.SourceKind)
	require.NotNil(t, reel.SourceID)
	assert.Equal(t, uint(4), *reel.SourceID)
	assert.Equal(t, "shopname", reel.AuthorHandle)
	assert.Equal(t, int64(75000), *reel.ViewCount)
	assert.Equal(t, models.ViewsOriginDirect, reel.ViewsOrigin)
	require.NotNil(t, reel.LikeCount, "zero likes must stay a value")
	assert.Equal(t, int64(0), *reel.LikeCount)
	assert.Equal(t, int64(12), *reel.CommentCount)
	assert.True(t, reel.IsVideo)
	assert.Equal(t, "new drop", *reel.Caption)
	assert.Equal(t, "https://cdn/thumb.jpg", *reel.ThumbnailURL)
	assert.Equal(t, "https://cdn/v.mp4", *reel.VideoURL)
	assert.Nil(t, reel.Transcript)
	assert.Contains(t, string(reel.RawPayload), "extraField")
}

func TestNormalizeMissingFieldsStayNil(t *testing.T) {
	raw := models.RawPost{"shortCode": "xyz"}
	src := &models.Source{ID: 9, ProjectID: 1, Kind: models.SourceKindHashtag, Key: "summer"}

	reel, err := Normalize(raw, src, pctx, resolve.Options{})
	require.NoError(t, err)

	assert.Equal(t, "https://www.instagram.com/reel/xyz/", reel.URL)
	assert.Nil(t, reel.ViewCount)
	assert.Equal(t, models.ViewsOriginUnavailable, reel.ViewsOrigin)
	assert.Nil(t, reel.LikeCount)
	assert.Nil(t, reel.CommentCount)
	assert.Nil(t, reel.PublishedAt)
	assert.Nil(t, reel.Caption)
	assert.Empty(t, reel.AuthorHandle, "hashtag sources do not imply an author")
}

func TestNormalizeCompetitorAuthorFallback(t *testing.T) {
	reel, err := Normalize(models.RawPost{"url": "https://x/reel/1"}, competitor(), pctx, resolve.Options{})
	require.NoError(t, err)
	assert.Equal(t, "shopname", reel.AuthorHandle)
}

func TestNormalizeValidationErrors(t *testing.T) {
	_, err := Normalize(models.RawPost{"caption": "no identifier"}, competitor(), pctx, resolve.Options{})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	other := competitor()
	other.ProjectID = 2
	_, err = Normalize(models.RawPost{"url": "https://x/reel/1"}, other, pctx, resolve.Options{})
	assert.True(t, errs.IsValidation(err))

	_, err = Normalize(models.RawPost{"url": "https://x/reel/1"}, nil, pctx, resolve.Options{})
	assert.True(t, errs.IsValidation(err))
}

func TestNormalizeAgreesWithFilter(t *testing.T) {
	policy := filter.DefaultPolicy()
	policy.Views.EstimateFromLikes = true

	raws := []models.RawPost{
		{"url": "https://x/1", "viewCount": 80000.0, "playCount": 90000.0, "timestamp": "2026-10-14T00:00:00Z"},
		{"url": "https://x/2", "playCount": 51000.0, "timestamp": "2026-10-14T00:00:00Z"},
		{"url": "https://x/3", "likesCount": 4000.0, "timestamp": "2026-10-14T00:00:00Z"},
	}

	for _, raw := range raws {
		d := filter.Evaluate(raw, policy, now)
		reel, err := Normalize(raw, competitor(), pctx, policy.Views)
		require.NoError(t, err)
		assert.Equal(t, d.Views.Value, reel.ViewCount, raw["url"])
		assert.Equal(t, d.Views.Origin, reel.ViewsOrigin, raw["url"])
	}
}
