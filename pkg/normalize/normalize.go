package normalize

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
	"reelscout/pkg/resolve"
)

// Normalize maps a provider record onto the stored reel shape. Metrics go
// through the same resolver table as the quality filter; absent optional
// fields stay nil.
func Normalize(raw models.RawPost, source *models.Source, pctx models.ProjectContext, opts resolve.Options) (*models.Reel, error) {
	if source == nil {
		return nil, errs.Validation("normalize: source is required")
	}
	if source.ProjectID != pctx.ProjectID {
		return nil, errs.Validation(fmt.Sprintf("normalize: source %d belongs to project %d, not %d",
			source.ID, source.ProjectID, pctx.ProjectID))
	}

	url := resolve.URL(raw)
	if url == "" {
		return nil, errs.Validation("normalize: record has no url or shortcode")
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, errs.Validation(fmt.Sprintf("normalize: raw payload for %s is not serializable: %v", url, err))
	}

	author := resolve.Author(raw)
	if author == "" && source.Kind == models.SourceKindCompetitor {
		author = models.SanitizeKey(source.Key)
	}

	views := resolve.ResolveViews(raw, opts)
	sourceID := source.ID

	return &models.Reel{
		URL:          url,
		ProjectID:    pctx.ProjectID,
		SourceKind:   source.Kind,
		SourceID:     &sourceID,
		AuthorHandle: author,
		ViewCount:    views.Value,
		ViewsOrigin:  views.Origin,
		LikeCount:    resolve.Likes(raw),
		CommentCount: resolve.Comments(raw),
		PublishedAt:  resolve.PublishedAt(raw),
		Caption:      resolve.Caption(raw),
		ThumbnailURL: resolve.ThumbnailURL(raw),
		VideoURL:     resolve.VideoURL(raw),
		IsVideo:      resolve.IsVideo(raw),
		RawPayload:   datatypes.JSON(payload),
	}, nil
}
