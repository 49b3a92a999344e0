package resolve

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelscout/pkg/models"
)

// DefaultLikesMultiplier is the legacy likes-to-views estimate factor
const DefaultLikesMultiplier = 15

// Candidate is one entry of the views resolution table
type Candidate struct {
	Origin models.ViewsOrigin
	Keys   []string
}

// ViewCandidates is the priority order for the views metric. The filter and
// the normalizer both resolve through this table.
var ViewCandidates = []Candidate{
	{Origin: models.ViewsOriginDirect, Keys: []string{"videoViewCount", "viewCount", "view_count", "views"}},
	{Origin: models.ViewsOriginPlay, Keys: []string{"videoPlayCount", "playCount", "play_count", "plays"}},
}

var (
	likeKeys      = []string{"likesCount", "likeCount", "like_count", "likes"}
	commentKeys   = []string{"commentsCount", "commentCount", "comment_count", "comments"}
	timeKeys      = []string{"timestamp", "takenAtTimestamp", "taken_at_timestamp", "taken_at", "takenAt", "createTime", "publishedAt"}
	urlKeys       = []string{"url", "postUrl", "permalink", "link"}
	shortcodeKeys = []string{"shortCode", "shortcode", "code"}
	authorPaths   = [][]string{{"ownerUsername"}, {"owner_username"}, {"username"}, {"owner", "username"}, {"user", "username"}}
	captionPaths  = [][]string{{"caption"}, {"caption", "text"}, {"text"}, {"description"}}
	thumbKeys     = []string{"displayUrl", "display_url", "thumbnailUrl", "thumbnail_url", "thumbnail_src"}
	videoKeys     = []string{"videoUrl", "video_url"}
)

// Options controls the degraded likes-based estimate
type Options struct {
	EstimateFromLikes bool
	LikesMultiplier   int64
}

// Views is a resolved view count with the field family that produced it
type Views struct {
	Value  *int64
	Origin models.ViewsOrigin
}

// Known reports whether any view figure was resolved
func (v Views) Known() bool {
	return v.Value != nil
}

// ResolveViews walks ViewCandidates in order; the likes estimate is only used
// when opts allows it and is tagged as estimated.
func ResolveViews(raw models.RawPost, opts Options) Views {
	for _, c := range ViewCandidates {
		if n, ok := firstInt(raw, c.Keys); ok {
			return Views{Value: &n, Origin: c.Origin}
		}
	}
	if opts.EstimateFromLikes {
		if likes, ok := firstInt(raw, likeKeys); ok {
			mult := opts.LikesMultiplier
			if mult <= 0 {
				mult = DefaultLikesMultiplier
			}
			est := int64(math.MaxInt64)
			if likes <= math.MaxInt64/mult {
				est = likes * mult
			}
			return Views{Value: &est, Origin: models.ViewsOriginEstimated}
		}
	}
	return Views{Origin: models.ViewsOriginUnavailable}
}

// Likes returns the like count, or nil when absent
func Likes(raw models.RawPost) *int64 {
	return optInt(raw, likeKeys)
}

// Comments returns the comment count, or nil when absent
func Comments(raw models.RawPost) *int64 {
	return optInt(raw, commentKeys)
}

// PublishedAt parses RFC3339 strings and unix seconds or milliseconds
func PublishedAt(raw models.RawPost) *time.Time {
	for _, k := range timeKeys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if t, ok := parseTime(v); ok {
			return &t
		}
	}
	return nil
}

// IsVideo inspects the type markers used by the known endpoints
func IsVideo(raw models.RawPost) bool {
	for _, k := range []string{"isVideo", "is_video"} {
		if b, ok := raw[k].(bool); ok {
			return b
		}
	}
	if s, ok := raw["type"].(string); ok {
		switch strings.ToLower(s) {
		case "video", "reel", "clips":
			return true
		case "image", "sidecar", "carousel", "graphimage", "graphsidecar":
			return false
		}
	}
	if s, ok := raw["productType"].(string); ok && strings.EqualFold(s, "clips") {
		return true
	}
	if n, ok := toInt(raw["media_type"]); ok {
		return n == 2
	}
	return VideoURL(raw) != nil
}

// URL returns the canonical content URL. A shortcode, given directly or
// parsed from an instagram.com post path, always yields the /reel/ form, so
// the same post reached through different actors maps to one key.
func URL(raw models.RawPost) string {
	for _, k := range shortcodeKeys {
		if s := str(raw[k]); s != "" {
			return reelURL(s)
		}
	}
	for _, k := range urlKeys {
		if s := str(raw[k]); s != "" {
			return CanonicalURL(s)
		}
	}
	return ""
}

// CanonicalURL normalizes a content URL. Instagram post, reel and tv paths
// collapse to https://www.instagram.com/reel/<code>/; other URLs lose their
// query and fragment, get a lowercase host and no trailing slash.
func CanonicalURL(raw string) string {
	s := strings.TrimSpace(raw)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		return s
	}
	host := strings.ToLower(u.Hostname())
	if code := instagramShortcode(host, u.Path); code != "" {
		return reelURL(code)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	return scheme + "://" + host + path
}

func instagramShortcode(host, path string) string {
	if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
		return ""
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	// /p/<code>, /reel/<code>, /tv/<code> and /<user>/reel/<code>
	for i := 0; i+1 < len(parts); i++ {
		switch strings.ToLower(parts[i]) {
		case "p", "reel", "reels", "tv":
			if parts[i+1] != "" {
				return parts[i+1]
			}
		}
	}
	return ""
}

func reelURL(code string) string {
	return fmt.Sprintf("https://www.instagram.com/reel/%s/", code)
}

// Author returns the sanitized owner handle, or "" when absent
func Author(raw models.RawPost) string {
	for _, p := range authorPaths {
		if s := str(lookup(raw, p...)); s != "" {
			return models.SanitizeKey(s)
		}
	}
	return ""
}

func Caption(raw models.RawPost) *string {
	for _, p := range captionPaths {
		if s := str(lookup(raw, p...)); s != "" {
			return &s
		}
	}
	return nil
}

func ThumbnailURL(raw models.RawPost) *string {
	return optStr(raw, thumbKeys)
}

func VideoURL(raw models.RawPost) *string {
	return optStr(raw, videoKeys)
}

func lookup(raw models.RawPost, path ...string) any {
	var cur any = map[string]any(raw)
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func firstInt(raw models.RawPost, keys []string) (int64, bool) {
	for _, k := range keys {
		if n, ok := toInt(raw[k]); ok {
			return n, true
		}
	}
	return 0, false
}

func optInt(raw models.RawPost, keys []string) *int64 {
	if n, ok := firstInt(raw, keys); ok {
		return &n
	}
	return nil
}

func optStr(raw models.RawPost, keys []string) *string {
	for _, k := range keys {
		if s := str(raw[k]); s != "" {
			return &s
		}
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// toInt accepts the numeric encodings seen in provider payloads. Negative
// and non-finite values are treated as absent.
func toInt(v any) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return 0, false
			}
			i = int64(f)
		}
		n = i
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n < 0 {
		return 0, false
	}
	return n, true
}

func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, ok := toInt(s); ok {
			return unix(n), true
		}
	default:
		if n, ok := toInt(x); ok && n > 0 {
			return unix(n), true
		}
	}
	return time.Time{}, false
}

// unix treats values past year 2286 in seconds as milliseconds
func unix(n int64) time.Time {
	if n > 1e10 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
