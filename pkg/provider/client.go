package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
)

const datasetItemsPath = "/v2/acts/%s/run-sync-get-dataset-items"

// Request describes one source fetch
type Request struct {
	Kind models.SourceKind
	Key  string
	// Limit caps the number of items the actor returns
	Limit int
	// NewerThanDays asks the actor to skip older posts; 0 disables it
	NewerThanDays int
}

// Fetcher is the provider boundary consumed by the raw fetcher
type Fetcher interface {
	FetchPosts(ctx context.Context, req Request) ([]models.RawPost, error)
}

// Client calls the scraping provider's synchronous dataset-items endpoint
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	actors     map[models.SourceKind]string
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a provider client. Per-call deadlines come from the
// caller's context; cfg.Timeout only bounds the transport.
func NewClient(cfg config.ProviderConfig, token string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      token,
		actors: map[models.SourceKind]string{
			models.SourceKindCompetitor: cfg.CompetitorActor,
			models.SourceKindHashtag:    cfg.HashtagActor,
		},
		headers: map[string]string{
			"User-Agent":   cfg.UserAgent,
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		logger: log.WithField("component", "provider"),
	}
}

// FetchPosts runs the actor for req and returns its raw items. Item-level
// provider errors (private or missing accounts) are dropped.
func (c *Client) FetchPosts(ctx context.Context, req Request) ([]models.RawPost, error) {
	actor, ok := c.actors[req.Kind]
	if !ok || actor == "" {
		return nil, errs.Provider(errs.ErrorTypeBadRequest, 0, fmt.Sprintf("no actor configured for %q sources", req.Kind), nil)
	}

	body, err := json.Marshal(actorInput(req))
	if err != nil {
		return nil, errs.Provider(errs.ErrorTypeBadRequest, 0, "failed to encode actor input", err)
	}

	endpoint := c.baseURL + fmt.Sprintf(datasetItemsPath, url.PathEscape(actor))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Provider(errs.ErrorTypeBadRequest, 0, "failed to create request", err)
	}

	resp, err := c.doRequest(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	items, err := c.decodeItems(resp)
	if err != nil {
		return nil, err
	}

	posts := make([]models.RawPost, 0, len(items))
	dropped := 0
	for _, item := range items {
		if isErrorItem(item) {
			dropped++
			continue
		}
		posts = append(posts, item)
	}

	c.logger.DebugWithFields("fetched dataset items", map[string]interface{}{
		"kind":    string(req.Kind),
		"key":     req.Key,
		"items":   len(posts),
		"dropped": dropped,
	})

	return posts, nil
}

// actorInput builds the actor's JSON input for a source kind
func actorInput(req Request) map[string]interface{} {
	input := map[string]interface{}{}
	if req.Limit > 0 {
		input["resultsLimit"] = req.Limit
	}
	if req.NewerThanDays > 0 {
		input["onlyPostsNewerThan"] = fmt.Sprintf("%d days", req.NewerThanDays)
	}

	switch req.Kind {
	case models.SourceKindCompetitor:
		input["username"] = []string{req.Key}
	case models.SourceKindHashtag:
		input["hashtags"] = []string{req.Key}
		input["resultsType"] = "reels"
	}
	return input
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WithError(err).WarnWithFields("provider request failed", map[string]interface{}{
			"url":      redact(req.URL),
			"duration": duration,
		})
		return nil, transportError(err)
	}

	logger.LogRequest(req.Method, redact(req.URL), resp.StatusCode, duration)
	return resp, nil
}

// transportError classifies a failed round trip
func transportError(err error) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Provider(errs.ErrorTypeTimeout, 0, "provider call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Provider(errs.ErrorTypeTimeout, 0, "provider call timed out", err)
	}
	return errs.Provider(errs.ErrorTypeNetwork, 0, "network error", err)
}

// checkResponseStatus maps non-2xx responses onto provider errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	perr := errs.FromStatus(resp.StatusCode, providerMessage(resp))
	if perr == nil {
		return nil
	}

	if perr.Type == errs.ErrorTypeRateLimit {
		perr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	c.logger.WarnWithFields("provider returned error status", map[string]interface{}{
		"status": resp.StatusCode,
		"type":   string(perr.Type),
		"url":    redact(resp.Request.URL),
	})
	return perr
}

func (c *Client) decodeItems(resp *http.Response) ([]models.RawPost, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Provider(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []models.RawPost
	if err := dec.Decode(&items); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.WithError(err).ErrorWithFields("failed to parse provider response", map[string]interface{}{
			"status":       resp.StatusCode,
			"body_preview": preview,
		})
		return nil, errs.Provider(errs.ErrorTypeParsing, resp.StatusCode, "provider response is not a JSON array of objects", err)
	}
	return items, nil
}

// providerMessage extracts {"error":{"message":...}} when present
func providerMessage(resp *http.Response) string {
	if resp.StatusCode < 400 {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return ""
}

func isErrorItem(item models.RawPost) bool {
	if _, ok := item["error"]; !ok {
		return false
	}
	_, hasURL := item["url"]
	_, hasCode := item["shortCode"]
	return !hasURL && !hasCode
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// redact drops query parameters, which may carry tokens
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}
