package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reelscout/pkg/models"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) string {
	return now.Add(-time.Duration(d) * 24 * time.Hour).Format(time.RFC3339)
}

func TestEvaluate(t *testing.T) {
	base := DefaultPolicy()
	estimating := DefaultPolicy()
	estimating.Views.EstimateFromLikes = true
	videoOnly := DefaultPolicy()
	videoOnly.RequireVideo = true
	lenient := DefaultPolicy()
	lenient.MissingPublishedAt = MissingTimestampAccept

	tests := []struct {
		name       string
		raw        models.RawPost
		policy     Policy
		accepted   bool
		reason     Reason
		viewOrigin models.ViewsOrigin
	}{
		{
			name:       "viral recent video",
			raw:        models.RawPost{"views": 75000.0, "timestamp": daysAgo(5), "type": "video"},
			policy:     base,
			accepted:   true,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "below view threshold",
			raw:        models.RawPost{"views": 10000.0, "timestamp": daysAgo(2)},
			policy:     base,
			reason:     ReasonBelowMinViews,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "likes estimate when enabled",
			raw:        models.RawPost{"likes": 4000.0, "timestamp": daysAgo(1)},
			policy:     estimating,
			accepted:   true,
			viewOrigin: models.ViewsOriginEstimated,
		},
		{
			name:       "likes only without estimate",
			raw:        models.RawPost{"likes": 4000.0, "timestamp": daysAgo(1)},
			policy:     base,
			reason:     ReasonViewsUnavailable,
			viewOrigin: models.ViewsOriginUnavailable,
		},
		{
			name:       "exactly at min views",
			raw:        models.RawPost{"playCount": 50000.0, "timestamp": daysAgo(1)},
			policy:     base,
			accepted:   true,
			viewOrigin: models.ViewsOriginPlay,
		},
		{
			name:       "exactly max age is kept",
			raw:        models.RawPost{"views": 60000.0, "timestamp": daysAgo(14)},
			policy:     base,
			accepted:   true,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "older than max age",
			raw:        models.RawPost{"views": 60000.0, "timestamp": daysAgo(15)},
			policy:     base,
			reason:     ReasonTooOld,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "missing timestamp rejected by default",
			raw:        models.RawPost{"views": 60000.0},
			policy:     base,
			reason:     ReasonMissingPublished,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "missing timestamp accepted when allowed",
			raw:        models.RawPost{"views": 60000.0},
			policy:     lenient,
			accepted:   true,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "image rejected when video required",
			raw:        models.RawPost{"views": 60000.0, "timestamp": daysAgo(1), "type": "Image"},
			policy:     videoOnly,
			reason:     ReasonNotVideo,
			viewOrigin: models.ViewsOriginDirect,
		},
		{
			name:       "image allowed when video not required",
			raw:        models.RawPost{"views": 60000.0, "timestamp": daysAgo(1), "type": "Image"},
			policy:     base,
			accepted:   true,
			viewOrigin: models.ViewsOriginDirect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.raw, tt.policy, now)
			assert.Equal(t, tt.accepted, d.Accepted)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.viewOrigin, d.Views.Origin)
			assert.Equal(t, tt.accepted, Accepts(tt.raw, tt.policy, now))
		})
	}
}

func TestEstimatedViewsValue(t *testing.T) {
	p := DefaultPolicy()
	p.Views.EstimateFromLikes = true
	d := Evaluate(models.RawPost{"likesCount": 4000.0, "timestamp": daysAgo(1)}, p, now)
	assert.True(t, d.Accepted)
	assert.Equal(t, int64(60000), *d.Views.Value)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	raw := models.RawPost{"views": 75000.0, "timestamp": daysAgo(14)}
	first := Evaluate(raw, DefaultPolicy(), now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(raw, DefaultPolicy(), now))
	}
	// the same post ages out once now moves past the window
	later := now.Add(25 * time.Hour)
	assert.False(t, Accepts(raw, DefaultPolicy(), later))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.MaxAgeDays = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.MissingPublishedAt = "maybe"
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.MinViews = -5
	assert.Error(t, p.Validate())
}
