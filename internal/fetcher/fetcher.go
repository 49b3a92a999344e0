package fetcher

import (
	"context"
	"errors"
	"time"

	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/provider"
	"reelscout/pkg/ratelimit"
	"reelscout/pkg/retry"
)

// Options controls one fetcher's call policy
type Options struct {
	// CallTimeout bounds every single provider call
	CallTimeout   time.Duration
	ResultsLimit  int
	NewerThanDays int
	// MaxAttempts of 1 disables retries
	MaxAttempts int
	Backoff     retry.BackoffStrategy
}

// OptionsFromConfig derives the fetcher policy from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		CallTimeout:   cfg.Provider.Timeout,
		ResultsLimit:  cfg.Ingest.ResultsLimit,
		NewerThanDays: cfg.Ingest.MaxAgeDays,
		MaxAttempts:   1,
	}
	if cfg.Retry.Enabled {
		opts.MaxAttempts = cfg.Retry.MaxAttempts
		opts.Backoff = retry.NewErrorTypeBackoff(retry.BackoffFromConfig(cfg.Retry))
	}
	return opts
}

// Result is the raw output of one source fetch
type Result struct {
	Posts    []models.RawPost
	Attempts int
	Duration time.Duration
}

// Fetcher is the raw fetcher: it wraps the provider client with the shared
// rate limiter, a per-call timeout and bounded retries.
type Fetcher struct {
	client  provider.Fetcher
	limiter ratelimit.Limiter
	opts    Options
	logger  logger.Logger
}

// New creates a Fetcher. A nil limiter disables rate limiting.
func New(client provider.Fetcher, limiter ratelimit.Limiter, opts Options, log logger.Logger) *Fetcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.NewErrorTypeBackoff(retry.DefaultExponentialBackoff())
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:  client,
		limiter: limiter,
		opts:    opts,
		logger:  log.WithField("component", "fetcher"),
	}
}

// Fetch returns the raw posts for one source. Every failure, including
// exhausted retries and cancellation, comes back as a provider error.
func (f *Fetcher) Fetch(ctx context.Context, src models.Source) (Result, error) {
	start := time.Now()
	req := provider.Request{
		Kind:          src.Kind,
		Key:           src.Key,
		Limit:         f.opts.ResultsLimit,
		NewerThanDays: f.opts.NewerThanDays,
	}
	log := f.logger.WithFields(map[string]interface{}{
		"kind": string(src.Kind),
		"key":  src.Key,
	})

	attempts := 0
	posts, err := retry.DoWithResult(func() ([]models.RawPost, error) {
		attempts++
		return f.attempt(ctx, req)
	}, &retry.Config{
		MaxAttempts: f.opts.MaxAttempts,
		Backoff:     f.opts.Backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      log,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			var perr *errs.Error
			if errors.As(err, &perr) && perr.RetryAfter > 0 {
				f.limiter.Pause(perr.RetryAfter)
			}
		},
	})

	res := Result{Posts: posts, Attempts: attempts, Duration: time.Since(start)}
	if err != nil {
		return res, asProviderError(err)
	}
	return res, nil
}

func (f *Fetcher) attempt(ctx context.Context, req provider.Request) ([]models.RawPost, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx := ctx
	if f.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.opts.CallTimeout)
		defer cancel()
	}

	posts, err := f.client.FetchPosts(callCtx, req)
	if err != nil {
		// the call deadline fired but the run itself is still live
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errs.IsProvider(err) {
			return nil, errs.Provider(errs.ErrorTypeTimeout, 0, "provider call timed out", err)
		}
		return nil, err
	}
	return posts, nil
}

// asProviderError keeps classified provider errors and wraps anything else
func asProviderError(err error) error {
	if errs.IsProvider(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Provider(errs.ErrorTypeTimeout, 0, "fetch deadline exceeded", err)
	}
	return errs.Provider(errs.ErrorTypeNetwork, 0, "fetch failed", err)
}
