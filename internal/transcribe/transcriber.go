package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
)

// ErrUnavailable means no transcript can be obtained for the media
var ErrUnavailable = errors.New("transcript unavailable")

// Transcriber turns a video reference into text
type Transcriber interface {
	Transcribe(ctx context.Context, videoURL string) (string, error)
}

// HTTPTranscriber calls a JSON transcription endpoint:
// POST {"url": ...} -> {"text": ...}
type HTTPTranscriber struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     logger.Logger
}

// NewHTTPTranscriber creates a transcriber for cfg.Endpoint
func NewHTTPTranscriber(cfg config.TranscriptionConfig, token string, log logger.Logger) *HTTPTranscriber {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HTTPTranscriber{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		token:      token,
		logger:     log.WithField("component", "transcriber"),
	}
}

type transcribeRequest struct {
	URL string `json:"url"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, videoURL string) (string, error) {
	body, err := json.Marshal(transcribeRequest{URL: videoURL})
	if err != nil {
		return "", errs.Provider(errs.ErrorTypeBadRequest, 0, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.Provider(errs.ErrorTypeBadRequest, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errs.Provider(errs.ErrorTypeTimeout, 0, "transcription timed out", err)
		}
		return "", errs.Provider(errs.ErrorTypeNetwork, 0, "transcription request failed", err)
	}
	defer resp.Body.Close()
	logger.LogRequest(req.Method, t.endpoint, resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusUnprocessableEntity:
		return "", ErrUnavailable
	}
	if perr := errs.FromStatus(resp.StatusCode, ""); perr != nil {
		return "", perr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Provider(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response", err)
	}
	var out transcribeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errs.Provider(errs.ErrorTypeParsing, resp.StatusCode, fmt.Sprintf("invalid transcription response (%d bytes)", len(data)), err)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrUnavailable
	}
	return text, nil
}
