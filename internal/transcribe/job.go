package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/ratelimit"
)

// ReelStore is the transcript-facing part of the reel repository
type ReelStore interface {
	PendingTranscripts(ctx context.Context, projectID uint, limit int) ([]models.Reel, error)
	SetTranscript(ctx context.Context, id uint, text string) error
	MarkTranscriptAttempt(ctx context.Context, id uint, at time.Time) error
}

// JobResult counts the outcome of one backfill pass
type JobResult struct {
	RunID       string
	Candidates  int
	Transcribed int
	Unavailable int
	Failed      int
}

// Job backfills transcripts for stored reels. It writes only the
// transcript column and its attempt marker.
type Job struct {
	reels       ReelStore
	transcriber Transcriber
	limiter     ratelimit.Limiter
	callTimeout time.Duration
	logger      logger.Logger
}

// NewJob creates a backfill job. A nil limiter means no rate limiting.
func NewJob(reels ReelStore, t Transcriber, limiter ratelimit.Limiter, callTimeout time.Duration, log logger.Logger) *Job {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Job{
		reels:       reels,
		transcriber: t,
		limiter:     limiter,
		callTimeout: callTimeout,
		logger:      log.WithField("component", "transcribe"),
	}
}

// Run transcribes up to limit pending reels, oldest first. Media without a
// transcript is stored as an empty string so it is not retried; provider
// failures leave the reel pending behind reels not yet tried.
func (j *Job) Run(ctx context.Context, pctx models.ProjectContext, limit int) (*JobResult, error) {
	start := time.Now()
	res := &JobResult{RunID: uuid.NewString()}
	log := j.logger.WithFields(map[string]interface{}{
		"run_id":  res.RunID,
		"project": pctx.ProjectName,
	})

	pending, err := j.reels.PendingTranscripts(ctx, pctx.ProjectID, limit)
	if err != nil {
		return res, err
	}
	res.Candidates = len(pending)

	for _, reel := range pending {
		if err := j.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("transcription cancelled: %w", err)
		}
		if reel.VideoURL == nil {
			continue
		}

		text, err := j.transcribeOne(ctx, *reel.VideoURL)
		switch {
		case err == nil:
			res.Transcribed++
		case errors.Is(err, ErrUnavailable):
			res.Unavailable++
			text = ""
		default:
			if ctx.Err() != nil {
				return res, fmt.Errorf("transcription cancelled: %w", ctx.Err())
			}
			res.Failed++
			log.WithError(err).WarnWithFields("Transcription failed", map[string]interface{}{
				"reel_id": reel.ID,
			})
			if err := j.reels.MarkTranscriptAttempt(ctx, reel.ID, pctx.Time()); err != nil {
				return res, err
			}
			continue
		}

		if err := j.reels.SetTranscript(ctx, reel.ID, text); err != nil {
			return res, err
		}
	}

	logger.LogRunSummary(log, res.RunID, map[string]interface{}{
		"candidates":  res.Candidates,
		"transcribed": res.Transcribed,
		"unavailable": res.Unavailable,
		"failed":      res.Failed,
	}, time.Since(start))
	return res, nil
}

func (j *Job) transcribeOne(ctx context.Context, videoURL string) (string, error) {
	if j.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.callTimeout)
		defer cancel()
	}
	return j.transcriber.Transcribe(ctx, videoURL)
}
