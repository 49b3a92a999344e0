package filter

import (
	"fmt"
	"time"

	"reelscout/pkg/models"
	"reelscout/pkg/resolve"
)

// MissingTimestamp decides what happens to a post with no publish time
type MissingTimestamp string

const (
	MissingTimestampReject MissingTimestamp = "reject"
	MissingTimestampAccept MissingTimestamp = "accept"
)

// Reason names why a raw post was rejected
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonViewsUnavailable Reason = "views_unavailable"
	ReasonBelowMinViews    Reason = "below_min_views"
	ReasonTooOld           Reason = "too_old"
	ReasonMissingPublished Reason = "missing_published_at"
	ReasonNotVideo         Reason = "not_video"
)

// Policy holds the quality thresholds for one ingest run
type Policy struct {
	MinViews           int64
	MaxAgeDays         int
	RequireVideo       bool
	MissingPublishedAt MissingTimestamp
	Views              resolve.Options
}

// DefaultPolicy returns the standard viral-content thresholds
func DefaultPolicy() Policy {
	return Policy{
		MinViews:           50000,
		MaxAgeDays:         14,
		MissingPublishedAt: MissingTimestampReject,
		Views:              resolve.Options{LikesMultiplier: resolve.DefaultLikesMultiplier},
	}
}

// Validate checks the policy before a run starts
func (p Policy) Validate() error {
	if p.MinViews < 0 {
		return fmt.Errorf("min views must be non-negative, got %d", p.MinViews)
	}
	if p.MaxAgeDays <= 0 {
		return fmt.Errorf("max age days must be positive, got %d", p.MaxAgeDays)
	}
	switch p.MissingPublishedAt {
	case MissingTimestampReject, MissingTimestampAccept:
	default:
		return fmt.Errorf("missing published_at policy must be %q or %q, got %q",
			MissingTimestampReject, MissingTimestampAccept, p.MissingPublishedAt)
	}
	return nil
}

// Decision is the outcome of evaluating one raw post
type Decision struct {
	Accepted bool
	Reason   Reason
	Views    resolve.Views
}

// Evaluate applies the policy to raw as of now. Checks run in a fixed order
// and the first failing one names the reason.
func Evaluate(raw models.RawPost, p Policy, now time.Time) Decision {
	views := resolve.ResolveViews(raw, p.Views)
	reject := func(r Reason) Decision {
		return Decision{Reason: r, Views: views}
	}

	if !views.Known() {
		return reject(ReasonViewsUnavailable)
	}
	if *views.Value < p.MinViews {
		return reject(ReasonBelowMinViews)
	}

	published := resolve.PublishedAt(raw)
	switch {
	case published == nil:
		if p.MissingPublishedAt != MissingTimestampAccept {
			return reject(ReasonMissingPublished)
		}
	case now.Sub(*published) > time.Duration(p.MaxAgeDays)*24*time.Hour:
		return reject(ReasonTooOld)
	}

	if p.RequireVideo && !resolve.IsVideo(raw) {
		return reject(ReasonNotVideo)
	}

	return Decision{Accepted: true, Views: views}
}

// Accepts reports whether raw qualifies for storage
func Accepts(raw models.RawPost, p Policy, now time.Time) bool {
	return Evaluate(raw, p, now).Accepted
}
