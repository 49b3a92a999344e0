package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
)

// SourceRepository is the source registry. Sources are never hard-deleted.
type SourceRepository struct {
	db *gorm.DB
}

// Add registers a competitor or hashtag. The key is sanitized first.
// Re-adding an inactive source reactivates it; re-adding an active one
// returns the stored row unchanged.
func (r *SourceRepository) Add(ctx context.Context, projectID uint, kind models.SourceKind, key, notes string) (*models.Source, bool, error) {
	if !kind.Valid() {
		return nil, false, errs.Validation(fmt.Sprintf("unknown source kind %q", kind))
	}
	key = models.SanitizeKey(key)
	if key == "" {
		return nil, false, errs.Validation("source key is empty")
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, false, errs.Storage("failed to check project", err)
	}
	if count == 0 {
		return nil, false, errs.Validation(fmt.Sprintf("project %d not found", projectID))
	}

	source := &models.Source{
		ProjectID: projectID,
		Kind:      kind,
		Key:       key,
		Active:    true,
		Notes:     notes,
	}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "kind"}, {Name: "key"}},
			DoNothing: true,
		}).
		Create(source)
	if res.Error != nil {
		return nil, false, errs.Storage("failed to add source", res.Error)
	}
	if res.RowsAffected > 0 {
		return source, true, nil
	}

	existing, err := r.find(ctx, projectID, kind, key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errs.Storage(fmt.Sprintf("source %s/%s vanished after conflict", kind, key), nil)
	}
	if !existing.Active {
		if err := r.db.WithContext(ctx).Model(existing).Update("active", true).Error; err != nil {
			return nil, false, errs.Storage("failed to reactivate source", err)
		}
		existing.Active = true
	}
	return existing, false, nil
}

func (r *SourceRepository) find(ctx context.Context, projectID uint, kind models.SourceKind, key string) (*models.Source, error) {
	var source models.Source
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND kind = ? AND key = ?", projectID, kind, key).
		First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to load source", err)
	}
	return &source, nil
}

// Get retrieves a source by ID, nil when absent
func (r *SourceRepository) Get(ctx context.Context, id uint) (*models.Source, error) {
	var source models.Source
	if err := r.db.WithContext(ctx).First(&source, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to load source", err)
	}
	return &source, nil
}

// Deactivate soft-disables a source
func (r *SourceRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Source{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return errs.Storage("failed to deactivate source", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Validation(fmt.Sprintf("source %d not found", id))
	}
	return nil
}

// ListActive returns the project's active sources in insertion order.
// An empty kind lists both kinds; an unknown project yields an empty slice.
func (r *SourceRepository) ListActive(ctx context.Context, projectID uint, kind models.SourceKind) ([]models.Source, error) {
	q := r.db.WithContext(ctx).Where("project_id = ? AND active = ?", projectID, true)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	sources := []models.Source{}
	if err := q.Order("id").Find(&sources).Error; err != nil {
		return nil, errs.Storage("failed to list sources", err)
	}
	return sources, nil
}

// List returns every source of the project, inactive ones included
func (r *SourceRepository) List(ctx context.Context, projectID uint, kind models.SourceKind) ([]models.Source, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	sources := []models.Source{}
	if err := q.Order("id").Find(&sources).Error; err != nil {
		return nil, errs.Storage("failed to list sources", err)
	}
	return sources, nil
}

// TouchLastScraped records a successful fetch cycle
func (r *SourceRepository) TouchLastScraped(ctx context.Context, id uint, ts time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Source{}).Where("id = ?", id).
		UpdateColumn("last_scraped_at", ts.UTC()).Error
	if err != nil {
		return errs.Storage("failed to touch source", err)
	}
	return nil
}
