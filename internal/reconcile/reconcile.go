package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
)

// SourceRegistry lists competitors and touches them after a repair
type SourceRegistry interface {
	ListActive(ctx context.Context, projectID uint, kind models.SourceKind) ([]models.Source, error)
	TouchLastScraped(ctx context.Context, id uint, ts time.Time) error
}

// Reattributor rewrites the attribution of stored reels
type Reattributor interface {
	Reattribute(ctx context.Context, projectID uint, handle string, sourceID uint, now time.Time) (int64, error)
}

// Ambiguity records a handle claimed by more than one competitor
type Ambiguity struct {
	Handle  string
	Chosen  uint
	Ignored []uint
}

// Result describes one reconciliation pass
type Result struct {
	Competitors  int
	Reattributed int64
	// PerSource maps competitor source IDs to the reels moved onto them
	PerSource map[uint]int64
	Ambiguous []Ambiguity
}

// Reconciler re-links stored reels to the competitor whose key matches
// their author handle. Matching is by handle only, so a renamed account is
// not followed.
type Reconciler struct {
	sources SourceRegistry
	reels   Reattributor
	logger  logger.Logger
}

func New(sources SourceRegistry, reels Reattributor, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Reconciler{
		sources: sources,
		reels:   reels,
		logger:  log.WithField("component", "reconcile"),
	}
}

// Run reconciles one project. Running it twice in a row changes nothing
// the second time. When a handle matches several competitors the lowest
// source ID wins and the ambiguity is logged.
func (r *Reconciler) Run(ctx context.Context, pctx models.ProjectContext) (*Result, error) {
	competitors, err := r.sources.ListActive(ctx, pctx.ProjectID, models.SourceKindCompetitor)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Competitors: len(competitors),
		PerSource:   make(map[uint]int64),
	}
	log := r.logger.WithField("project", pctx.ProjectName)
	now := pctx.Time()

	for _, group := range groupByHandle(competitors) {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("reconcile cancelled: %w", err)
		}

		chosen := group.sources[0]
		if len(group.sources) > 1 {
			amb := Ambiguity{Handle: group.handle, Chosen: chosen.ID}
			for _, s := range group.sources[1:] {
				amb.Ignored = append(amb.Ignored, s.ID)
			}
			res.Ambiguous = append(res.Ambiguous, amb)
			log.WithError(errs.Ambiguity("handle matches several competitors")).WarnWithFields("Ambiguous competitor handle", map[string]interface{}{
				"handle":  group.handle,
				"chosen":  chosen.ID,
				"ignored": fmt.Sprint(amb.Ignored),
			})
		}

		n, err := r.reels.Reattribute(ctx, pctx.ProjectID, group.handle, chosen.ID, now)
		if err != nil {
			return res, err
		}
		if n == 0 {
			continue
		}

		res.Reattributed += n
		res.PerSource[chosen.ID] = n
		if err := r.sources.TouchLastScraped(ctx, chosen.ID, now); err != nil {
			return res, err
		}
		log.InfoWithFields("Reattributed reels", map[string]interface{}{
			"handle":    group.handle,
			"source_id": chosen.ID,
			"reels":     n,
		})
	}

	log.InfoWithFields("Reconciliation finished", map[string]interface{}{
		"competitors":  res.Competitors,
		"reattributed": res.Reattributed,
		"ambiguous":    len(res.Ambiguous),
	})
	return res, nil
}

type handleGroup struct {
	handle  string
	sources []models.Source
}

// groupByHandle buckets competitors by sanitized key, each bucket and the
// bucket list ordered by source ID
func groupByHandle(competitors []models.Source) []handleGroup {
	byHandle := make(map[string][]models.Source)
	for _, c := range competitors {
		h := models.SanitizeKey(c.Key)
		if h == "" {
			continue
		}
		byHandle[h] = append(byHandle[h], c)
	}

	groups := make([]handleGroup, 0, len(byHandle))
	for h, sources := range byHandle {
		sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
		groups = append(groups, handleGroup{handle: h, sources: sources})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].sources[0].ID < groups[j].sources[0].ID
	})
	return groups
}
