package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
)

// Totals summarizes a project's stored reels
type Totals struct {
	Reels       int64
	ByKind      map[models.SourceKind]int64
	Estimated   int64
	Unavailable int64
	Transcribed int64
}

// SourceFreshness is one row of the freshness report
type SourceFreshness struct {
	SourceID      uint
	Kind          models.SourceKind
	Key           string
	Active        bool
	LastScrapedAt *time.Time
	Reels         int64
}

// ReportRepository holds the read-only reporting queries
type ReportRepository struct {
	db *gorm.DB
}

// Totals counts reels per source kind and per views origin
func (r *ReportRepository) Totals(ctx context.Context, projectID uint) (*Totals, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Reel{}).Where("project_id = ?", projectID)
	}

	var rows []struct {
		SourceKind models.SourceKind
		N          int64
	}
	if err := base().Select("source_kind, COUNT(*) AS n").Group("source_kind").Scan(&rows).Error; err != nil {
		return nil, errs.Storage("failed to count reels by kind", err)
	}

	t := &Totals{ByKind: make(map[models.SourceKind]int64)}
	for _, row := range rows {
		t.ByKind[row.SourceKind] = row.N
		t.Reels += row.N
	}

	if err := base().Where("views_origin = ?", models.ViewsOriginEstimated).Count(&t.Estimated).Error; err != nil {
		return nil, errs.Storage("failed to count estimated reels", err)
	}
	if err := base().Where("views_origin = ?", models.ViewsOriginUnavailable).Count(&t.Unavailable).Error; err != nil {
		return nil, errs.Storage("failed to count reels without views", err)
	}
	if err := base().Where("transcript IS NOT NULL AND transcript <> ''").Count(&t.Transcribed).Error; err != nil {
		return nil, errs.Storage("failed to count transcribed reels", err)
	}
	return t, nil
}

// TopByViews returns the most viewed reels published since the given time.
// A zero since disables the window. Estimated view counts are excluded
// unless includeEstimated is set.
func (r *ReportRepository) TopByViews(ctx context.Context, projectID uint, since time.Time, limit int, includeEstimated bool) ([]models.Reel, error) {
	q := r.db.WithContext(ctx).
		Where("project_id = ? AND view_count IS NOT NULL", projectID)
	if !since.IsZero() {
		q = q.Where("published_at >= ?", since.UTC())
	}
	if !includeEstimated {
		q = q.Where("views_origin <> ?", models.ViewsOriginEstimated)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	reels := []models.Reel{}
	if err := q.Order("view_count DESC, id").Find(&reels).Error; err != nil {
		return nil, errs.Storage("failed to load top reels", err)
	}
	return reels, nil
}

// Freshness lists every source of the kind with its last scrape and the
// number of reels attributed to it. An empty kind covers both kinds.
func (r *ReportRepository) Freshness(ctx context.Context, projectID uint, kind models.SourceKind) ([]SourceFreshness, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var sources []models.Source
	if err := q.Order("id").Find(&sources).Error; err != nil {
		return nil, errs.Storage("failed to list sources", err)
	}

	var counts []struct {
		SourceID uint
		N        int64
	}
	err := r.db.WithContext(ctx).Model(&models.Reel{}).
		Select("source_id, COUNT(*) AS n").
		Where("project_id = ? AND source_id IS NOT NULL", projectID).
		Group("source_id").
		Scan(&counts).Error
	if err != nil {
		return nil, errs.Storage("failed to count reels per source", err)
	}
	perSource := make(map[uint]int64, len(counts))
	for _, c := range counts {
		perSource[c.SourceID] = c.N
	}

	out := make([]SourceFreshness, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourceFreshness{
			SourceID:      s.ID,
			Kind:          s.Kind,
			Key:           s.Key,
			Active:        s.Active,
			LastScrapedAt: s.LastScrapedAt,
			Reels:         perSource[s.ID],
		})
	}
	return out, nil
}
