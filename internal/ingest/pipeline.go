package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reelscout/internal/fetcher"
	"reelscout/internal/store"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/filter"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/normalize"
)

// SourceRegistry is the part of the source registry the pipeline uses
type SourceRegistry interface {
	ListActive(ctx context.Context, projectID uint, kind models.SourceKind) ([]models.Source, error)
	TouchLastScraped(ctx context.Context, id uint, ts time.Time) error
}

// Upserter stores normalized reels
type Upserter interface {
	Upsert(ctx context.Context, reel *models.Reel) (store.UpsertResult, error)
}

// SourceFetcher returns raw posts for a source
type SourceFetcher interface {
	Fetch(ctx context.Context, src models.Source) (fetcher.Result, error)
}

// Options sizes one pipeline
type Options struct {
	Policy  filter.Policy
	Workers int

	// optional progress hooks; OnSource is called serially
	OnStart  func(sources int)
	OnSource func(SourceResult)
}

// Pipeline runs source registry -> fetcher -> filter -> normalizer -> upserter
// for every active source of a project. Sources are processed concurrently
// up to Workers; each source's pass is independent of the others.
type Pipeline struct {
	sources SourceRegistry
	reels   Upserter
	fetch   SourceFetcher
	opts    Options
	logger  logger.Logger
}

// New creates a Pipeline
func New(sources SourceRegistry, reels Upserter, fetch SourceFetcher, opts Options, log logger.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{
		sources: sources,
		reels:   reels,
		fetch:   fetch,
		opts:    opts,
		logger:  log.WithField("component", "ingest"),
	}
}

// RunProject refuses inactive projects, then runs the pipeline for them
func (p *Pipeline) RunProject(ctx context.Context, project *models.Project, kind models.SourceKind, now func() time.Time) (*Summary, error) {
	if project == nil {
		return nil, errs.Validation("project not found")
	}
	if !project.Active {
		return nil, errs.Validation(fmt.Sprintf("project %q is inactive", project.Name))
	}
	return p.Run(ctx, models.NewProjectContext(project, now), kind)
}

// Run ingests every active source of the given kind; an empty kind covers
// both. Provider and validation failures are counted in the Summary. A
// storage failure stops the run and is returned with the partial Summary.
// Cancelling ctx stops the run; sources cut off mid-way are reported as
// interrupted with whatever they already wrote.
func (p *Pipeline) Run(ctx context.Context, pctx models.ProjectContext, kind models.SourceKind) (*Summary, error) {
	if err := p.opts.Policy.Validate(); err != nil {
		return nil, errs.Validation(err.Error())
	}

	summary := newSummary(uuid.NewString(), pctx)
	log := p.logger.WithFields(map[string]interface{}{
		"run_id":  summary.RunID,
		"project": pctx.ProjectName,
	})

	if err := ctx.Err(); err != nil {
		summary.FinishedAt = pctx.Time()
		return summary, fmt.Errorf("ingest run cancelled: %w", err)
	}

	sources, err := p.sources.ListActive(ctx, pctx.ProjectID, kind)
	if err != nil {
		return summary, err
	}
	log.InfoWithFields("Starting ingest run", map[string]interface{}{
		"sources": len(sources),
		"workers": p.opts.Workers,
		"kind":    string(kind),
	})
	if p.opts.OnStart != nil {
		p.opts.OnStart(len(sources))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, src := range sources {
		if gctx.Err() != nil {
			break
		}
		src := src
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := p.processSource(gctx, pctx, src, log)

			// cut off by cancellation: its committed rows still count
			if gctx.Err() != nil && res.Err != nil && err == nil {
				res.Interrupted = true
			}

			mu.Lock()
			summary.add(res)
			if p.opts.OnSource != nil {
				p.opts.OnSource(res)
			}
			mu.Unlock()
			return err
		})
	}

	runErr := g.Wait()
	summary.FinishedAt = pctx.Time()
	summary.sortSources()
	logger.LogRunSummary(log, summary.RunID, summary.Stats(), summary.Duration())

	if runErr != nil {
		return summary, runErr
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("ingest run cancelled: %w", err)
	}
	return summary, nil
}

// processSource is the unit of atomicity: fetch, filter, normalize and
// upsert one source's posts. Only storage failures are returned as errors.
func (p *Pipeline) processSource(ctx context.Context, pctx models.ProjectContext, src models.Source, log logger.Logger) (res SourceResult, err error) {
	start := time.Now()
	res = SourceResult{
		SourceID: src.ID,
		Kind:     src.Kind,
		Key:      src.Key,
		Filtered: make(map[filter.Reason]int),
	}
	srcLog := log.WithFields(map[string]interface{}{
		"source_id": src.ID,
		"kind":      string(src.Kind),
	})
	defer func() {
		res.Duration = time.Since(start)
	}()

	fetched, err := p.fetch.Fetch(ctx, src)
	res.Attempts = fetched.Attempts
	if err != nil {
		res.Err = err
		logger.LogSourceResult(srcLog, src.Key, res.counts(), err)
		return res, nil
	}
	res.Fetched = len(fetched.Posts)

	now := pctx.Time()
	for _, raw := range fetched.Posts {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res, nil
		}

		decision := filter.Evaluate(raw, p.opts.Policy, now)
		if !decision.Accepted {
			res.Filtered[decision.Reason]++
			continue
		}

		reel, err := normalize.Normalize(raw, &src, pctx, p.opts.Policy.Views)
		if err != nil {
			res.Invalid++
			srcLog.WithError(err).Debug("Dropping record that cannot be normalized")
			continue
		}

		up, err := p.reels.Upsert(ctx, reel)
		switch {
		case err == nil:
			res.record(up.Outcome)
		case errs.IsValidation(err):
			res.Invalid++
		default:
			return p.storageFailure(ctx, res, err, srcLog)
		}
	}

	if err := p.sources.TouchLastScraped(ctx, src.ID, now); err != nil {
		return p.storageFailure(ctx, res, err, srcLog)
	}

	logger.LogSourceResult(srcLog, src.Key, res.counts(), nil)
	return res, nil
}

// storageFailure ends a source on a store error. A write that failed only
// because the run was cancelled is reported as an interruption instead.
func (p *Pipeline) storageFailure(ctx context.Context, res SourceResult, err error, log logger.Logger) (SourceResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Err = ctxErr
		return res, nil
	}
	res.Err = err
	logger.LogSourceResult(log, res.Key, res.counts(), err)
	if !errs.IsStorage(err) {
		err = errs.Storage("store failed", err)
	}
	return res, err
}
