package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
)

// Outcome is the result of a single upsert
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeSkipped  Outcome = "skipped"
)

// UpsertResult carries the outcome and the stored row's ID
type UpsertResult struct {
	Outcome Outcome
	ID      uint
}

// ReelRepository owns every write to the reels table
type ReelRepository struct {
	db *gorm.DB
}

// Upsert inserts reel unless its URL is already stored. An existing row is
// never modified: the unique index on url plus ON CONFLICT DO NOTHING turns
// a concurrent duplicate into a Skipped outcome.
func (r *ReelRepository) Upsert(ctx context.Context, reel *models.Reel) (UpsertResult, error) {
	if reel.URL == "" {
		return UpsertResult{}, errs.Validation("reel has no url")
	}

	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(reel)
	if res.Error != nil {
		return UpsertResult{}, errs.Storage("failed to insert reel", res.Error)
	}
	if res.RowsAffected > 0 {
		return UpsertResult{Outcome: OutcomeInserted, ID: reel.ID}, nil
	}

	var existing models.Reel
	err := r.db.WithContext(ctx).Select("id").Where("url = ?", reel.URL).Take(&existing).Error
	if err != nil {
		return UpsertResult{}, errs.Storage("failed to resolve existing reel", err)
	}
	return UpsertResult{Outcome: OutcomeSkipped, ID: existing.ID}, nil
}

// Get retrieves a reel by ID, nil when absent
func (r *ReelRepository) Get(ctx context.Context, id uint) (*models.Reel, error) {
	var reel models.Reel
	if err := r.db.WithContext(ctx).First(&reel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to load reel", err)
	}
	return &reel, nil
}

// GetByURL retrieves a reel by its canonical URL, nil when absent
func (r *ReelRepository) GetByURL(ctx context.Context, url string) (*models.Reel, error) {
	var reel models.Reel
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&reel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to load reel", err)
	}
	return &reel, nil
}

// Count returns the number of stored reels for a project
func (r *ReelRepository) Count(ctx context.Context, projectID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Reel{}).Where("project_id = ?", projectID).Count(&n).Error; err != nil {
		return 0, errs.Storage("failed to count reels", err)
	}
	return n, nil
}

// Reattribute points every project reel by handle at the competitor source.
// Rows already attributed to it are left alone, so a repeat call affects
// nothing. Handle matching ignores case.
func (r *ReelRepository) Reattribute(ctx context.Context, projectID uint, handle string, sourceID uint, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Reel{}).
		Where("project_id = ? AND LOWER(author_handle) = ?", projectID, models.SanitizeKey(handle)).
		Where("(source_kind <> ? OR source_id IS NULL OR source_id <> ?)", models.SourceKindCompetitor, sourceID).
		UpdateColumns(map[string]interface{}{
			"source_kind": models.SourceKindCompetitor,
			"source_id":   sourceID,
			"updated_at":  now.UTC(),
		})
	if res.Error != nil {
		return 0, errs.Storage("failed to reattribute reels", res.Error)
	}
	return res.RowsAffected, nil
}

// PendingTranscripts lists reels that have a video URL and no transcript.
// Never-attempted reels come first, oldest first; reels whose last attempt
// failed follow, least recently tried first, so repeat failures cannot hold
// every slot of a limited run.
func (r *ReelRepository) PendingTranscripts(ctx context.Context, projectID uint, limit int) ([]models.Reel, error) {
	q := r.db.WithContext(ctx).
		Where("project_id = ? AND video_url IS NOT NULL AND video_url <> '' AND transcript IS NULL", projectID).
		Order("CASE WHEN transcript_attempted_at IS NULL THEN 0 ELSE 1 END, transcript_attempted_at, created_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	reels := []models.Reel{}
	if err := q.Find(&reels).Error; err != nil {
		return nil, errs.Storage("failed to list pending transcripts", err)
	}
	return reels, nil
}

// MarkTranscriptAttempt records a failed attempt; the transcript stays NULL
func (r *ReelRepository) MarkTranscriptAttempt(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Reel{}).Where("id = ?", id).UpdateColumn("transcript_attempted_at", at.UTC())
	if res.Error != nil {
		return errs.Storage("failed to mark transcript attempt", res.Error)
	}
	return nil
}

// SetTranscript writes only the transcript column
func (r *ReelRepository) SetTranscript(ctx context.Context, id uint, text string) error {
	res := r.db.WithContext(ctx).Model(&models.Reel{}).Where("id = ?", id).UpdateColumn("transcript", text)
	if res.Error != nil {
		return errs.Storage("failed to store transcript", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Validation("reel not found")
	}
	return nil
}
