// Package retry provides bounded retry with backoff for calls to the scraping
// and transcription providers.
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(retry.BackoffFromConfig(c.Retry)),
//		Context:     ctx,
//		Logger:      log,
//	}
//	posts, err := retry.DoWithResult(func() ([]models.RawPost, error) {
//		return client.FetchPosts(ctx, req)
//	}, cfg)
//
// Only errors classified as transient by pkg/errors are retried: network,
// timeout, rate limit and server errors. Auth, not-found and parsing
// errors fail on the first attempt.
package retry
