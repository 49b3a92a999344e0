package resolve

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscout/pkg/models"
)

func TestResolveViewsPriority(t *testing.T) {
	tests := []struct {
		name       string
		raw        models.RawPost
		opts       Options
		wantValue  *int64
		wantOrigin models.ViewsOrigin
	}{
		{
			name:       "direct field wins over play count",
			raw:        models.RawPost{"videoViewCount": 75000.0, "videoPlayCount": 120000.0},
			wantValue:  ptr(75000),
			wantOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "play count when no direct field",
			raw:        models.RawPost{"playCount": 30000.0, "likesCount": 9000.0},
			wantValue:  ptr(30000),
			wantOrigin: models.ViewsOriginPlay,
		},
		{
			name:       "zero is a real direct value",
			raw:        models.RawPost{"view_count": 0.0, "play_count": 10.0},
			wantValue:  ptr(0),
			wantOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "likes ignored when estimate disabled",
			raw:        models.RawPost{"likesCount": 4000.0},
			wantOrigin: models.ViewsOriginUnavailable,
		},
		{
			name:       "likes estimate when enabled",
			raw:        models.RawPost{"likesCount": 4000.0},
			opts:       Options{EstimateFromLikes: true, LikesMultiplier: 15},
			wantValue:  ptr(60000),
			wantOrigin: models.ViewsOriginEstimated,
		},
		{
			name:       "estimate uses default multiplier",
			raw:        models.RawPost{"like_count": 10.0},
			opts:       Options{EstimateFromLikes: true},
			wantValue:  ptr(150),
			wantOrigin: models.ViewsOriginEstimated,
		},
		{
			name:       "negative direct value falls through",
			raw:        models.RawPost{"viewCount": -1.0, "playCount": 500.0},
			wantValue:  ptr(500),
			wantOrigin: models.ViewsOriginPlay,
		},
		{
			name:       "string and json number encodings",
			raw:        models.RawPost{"viewCount": "1,250"},
			wantValue:  ptr(1250),
			wantOrigin: models.ViewsOriginDirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveViews(tt.raw, tt.opts)
			assert.Equal(t, tt.wantOrigin, got.Origin)
			assert.Equal(t, tt.wantValue, got.Value)
		})
	}
}

func TestJSONNumberDecoding(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"videoPlayCount": 42, "commentsCount": 3}`))
	dec.UseNumber()
	var raw models.RawPost
	require.NoError(t, dec.Decode(&raw))

	v := ResolveViews(raw, Options{})
	require.True(t, v.Known())
	assert.Equal(t, int64(42), *v.Value)
	assert.Equal(t, int64(3), *Comments(raw))
	assert.Nil(t, Likes(raw))
}

func TestPublishedAt(t *testing.T) {
	want := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  models.RawPost
	}{
		{"rfc3339", models.RawPost{"timestamp": "2026-10-01T08:30:00.000Z"}},
		{"unix seconds", models.RawPost{"taken_at": float64(want.Unix())}},
		{"unix millis", models.RawPost{"takenAtTimestamp": float64(want.UnixMilli())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PublishedAt(tt.raw)
			require.NotNil(t, got)
			assert.True(t, want.Equal(*got), "got %v", got)
		})
	}

	assert.Nil(t, PublishedAt(models.RawPost{"timestamp": "yesterday"}))
	assert.Nil(t, PublishedAt(models.RawPost{}))
}

func TestURLAndAuthor(t *testing.T) {
	raw := models.RawPost{"shortCode": "abc", "owner": map[string]any{"username": "@ShopName"}}
	assert.Equal(t, "https://www.instagram.com/reel/abc/", URL(raw))
	assert.Equal(t, "shopname", Author(raw))

	raw = models.RawPost{"url": "https://x/reel/abc", "ownerUsername": "other"}
	assert.Equal(t, "https://x/reel/abc", URL(raw))
	assert.Equal(t, "other", Author(raw))

	assert.Equal(t, "", URL(models.RawPost{"caption": "no id"}))
}

func TestURLCanonicalForms(t *testing.T) {
	const want = "https://www.instagram.com/reel/ABC123/"
	tests := []struct {
		name string
		raw  models.RawPost
		want string
	}{
		{"shortcode only", models.RawPost{"shortCode": "ABC123"}, want},
		{"shortcode beats post url", models.RawPost{"url": "https://www.instagram.com/p/ABC123/", "shortCode": "ABC123"}, want},
		{"post path", models.RawPost{"url": "https://www.instagram.com/p/ABC123/"}, want},
		{"reel path with share query", models.RawPost{"url": "https://www.instagram.com/reel/ABC123/?igsh=zz"}, want},
		{"tv path without www", models.RawPost{"postUrl": "http://instagram.com/tv/ABC123"}, want},
		{"user prefixed reel path", models.RawPost{"permalink": "https://www.Instagram.com/shopname/reel/ABC123/#top"}, want},
		{"foreign host keeps path", models.RawPost{"url": "https://CDN.Example.com/reel/9/?x=1"}, "https://cdn.example.com/reel/9"},
		{"instagram profile url", models.RawPost{"url": "https://www.instagram.com/shopname/"}, "https://www.instagram.com/shopname"},
		{"not a url", models.RawPost{"url": "opaque-id?ref=1"}, "opaque-id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.raw))
		})
	}
}

func TestEstimateSaturates(t *testing.T) {
	raw := models.RawPost{"likesCount": json.Number("9223372036854775807")}
	got := ResolveViews(raw, Options{EstimateFromLikes: true, LikesMultiplier: 15})
	require.NotNil(t, got.Value)
	assert.Equal(t, int64(math.MaxInt64), *got.Value)
	assert.Equal(t, models.ViewsOriginEstimated, got.Origin)
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo(models.RawPost{"type": "Video"}))
	assert.False(t, IsVideo(models.RawPost{"type": "Sidecar", "videoUrl": "https://cdn/v.mp4"}))
	assert.True(t, IsVideo(models.RawPost{"productType": "clips"}))
	assert.True(t, IsVideo(models.RawPost{"media_type": 2.0}))
	assert.True(t, IsVideo(models.RawPost{"videoUrl": "https://cdn/v.mp4"}))
	assert.False(t, IsVideo(models.RawPost{"is_video": false, "videoUrl": "https://cdn/v.mp4"}))
	assert.False(t, IsVideo(models.RawPost{}))
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "hello", *Caption(models.RawPost{"caption": map[string]any{"text": "hello"}}))
	assert.Equal(t, "plain", *Caption(models.RawPost{"caption": "plain"}))
	assert.Nil(t, Caption(models.RawPost{"caption": ""}))
}

func ptr(n int64) *int64 { return &n }
