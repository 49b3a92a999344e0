// Package ratelimit throttles calls to the scraping provider.
//
// TokenBucket wraps golang.org/x/time/rate and adds Pause, which the fetcher
// calls when the provider answers 429 so every worker backs off together.
//
//	limiter := ratelimit.FromConfig(cfg.RateLimit)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
