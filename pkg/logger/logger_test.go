package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelscout/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "reelscout.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), `"app":"reelscout"`)
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	base := l.WithField("component", "ingest")
	base.
		WithField("source", "competitor:shopname").
		WithFields(map[string]interface{}{"inserted": 3, "source_id": uint(7)}).
		WithError(errors.New("boom")).
		Info("chained")

	out := buf.String()
	assert.Contains(t, out, `"component":"ingest"`)
	assert.Contains(t, out, `"source":"competitor:shopname"`)
	assert.Contains(t, out, `"inserted":3`)
	assert.Contains(t, out, `"source_id":7`)
	assert.Contains(t, out, `"error":"boom"`)

	// derived loggers do not leak fields back into their parent
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "source_id")
}

func TestWithErrorNil(t *testing.T) {
	l := NewWithWriter(&bytes.Buffer{}, zerolog.InfoLevel)
	assert.Same(t, l, l.WithError(nil))
}

func TestStructuredFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.InfoWithFields("typed", map[string]interface{}{
		"count":    int64(60000),
		"at":       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"took":     5 * time.Second,
		"tags":     []string{"a", "b"},
		"reasons":  map[string]int{"too_old": 2},
		"estimate": true,
	})

	out := buf.String()
	assert.Contains(t, out, `"count":60000`)
	assert.Contains(t, out, `"tags":["a","b"]`)
	assert.Contains(t, out, `"reasons":{"too_old":2}`)
	assert.Contains(t, out, `"estimate":true`)
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())

	capture := NewTestLogger()
	SetLogger(capture)
	defer SetLogger(NewNopLogger())

	Info("global info")
	WithField("k", "v").Warn("global warn")
	LogRateLimit("acts/run-sync", 2*time.Second)

	assert.True(t, capture.HasMessage("global info"))
	warns := capture.GetMessagesByLevel("WARN")
	require.Len(t, warns, 2)
	assert.Equal(t, "v", warns[0].Fields["k"])
	assert.Equal(t, "rate_limited", warns[1].Fields["action"])
}

func TestTestLoggerKeepsFieldsAcrossDerivation(t *testing.T) {
	l := NewTestLogger()
	err := errors.New("provider down")

	l.WithField("component", "fetcher").WithError(err).WarnWithFields("retrying", map[string]interface{}{"attempt": 2})
	LogSourceResult(l, "hashtag:summer", map[string]int{"fetched": 4}, nil)

	msgs := l.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "fetcher", msgs[0].Fields["component"])
	assert.Equal(t, 2, msgs[0].Fields["attempt"])
	assert.Equal(t, err, msgs[0].Error)
	assert.Equal(t, "Source processed", msgs[1].Message)
	assert.Equal(t, 4, msgs[1].Fields["fetched"])
	assert.Contains(t, l.String(), "provider down")

	l.Clear()
	assert.Empty(t, l.GetMessages())
}
