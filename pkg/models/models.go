package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// SourceKind discriminates tracked accounts from tracked hashtags
type SourceKind string

const (
	SourceKindCompetitor SourceKind = "competitor"
	SourceKindHashtag    SourceKind = "hashtag"
)

// Valid reports whether k is one of the known kinds
func (k SourceKind) Valid() bool {
	return k == SourceKindCompetitor || k == SourceKindHashtag
}

// ParseSourceKind accepts the kind names used on the command line
func ParseSourceKind(s string) (SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "competitor", "competitors", "account":
		return SourceKindCompetitor, true
	case "hashtag", "hashtags", "tag":
		return SourceKindHashtag, true
	}
	return "", false
}

// ViewsOrigin records which raw field produced a reel's view count
type ViewsOrigin string

const (
	ViewsOriginDirect      ViewsOrigin = "direct"
	ViewsOriginPlay        ViewsOrigin = "play"
	ViewsOriginEstimated   ViewsOrigin = "estimated"
	ViewsOriginUnavailable ViewsOrigin = "unavailable"
)

// Project is the top-level tenant grouping
type Project struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex;column:name"`
	Active    bool      `gorm:"not null;column:active"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// Source is a tracked competitor account or hashtag.
// (project, kind, key) is unique; sources are never hard-deleted.
type Source struct {
	ID            uint       `gorm:"primaryKey;autoIncrement;column:id"`
	ProjectID     uint       `gorm:"not null;column:project_id;uniqueIndex:idx_sources_project_kind_key,priority:1"`
	Kind          SourceKind `gorm:"type:varchar(16);not null;column:kind;uniqueIndex:idx_sources_project_kind_key,priority:2"`
	Key           string     `gorm:"type:varchar(255);not null;column:key;uniqueIndex:idx_sources_project_kind_key,priority:3"`
	Active        bool       `gorm:"not null;column:active"`
	LastScrapedAt *time.Time `gorm:"column:last_scraped_at"`
	Notes         string     `gorm:"type:text;column:notes"`
	CreatedAt     time.Time  `gorm:"not null;column:created_at"`
	UpdatedAt     time.Time  `gorm:"not null;column:updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:RESTRICT"`
}

// TableName specifies the table name for Source
func (Source) TableName() string {
	return "sources"
}

// Reel is one stored scraped post. URL is globally unique.
// Counts are nil when the provider did not report them; zero is a real value.
type Reel struct {
	ID           uint           `gorm:"primaryKey;autoIncrement;column:id"`
	URL          string         `gorm:"type:text;not null;uniqueIndex;column:url"`
	ProjectID    uint           `gorm:"not null;index;column:project_id"`
	SourceKind   SourceKind     `gorm:"type:varchar(16);not null;column:source_kind"`
	SourceID     *uint          `gorm:"index;column:source_id"`
	AuthorHandle string         `gorm:"type:varchar(255);index;column:author_handle"`
	ViewCount    *int64         `gorm:"column:view_count"`
	ViewsOrigin  ViewsOrigin    `gorm:"type:varchar(16);not null;column:views_origin"`
	LikeCount    *int64         `gorm:"column:like_count"`
	CommentCount *int64         `gorm:"column:comment_count"`
	PublishedAt  *time.Time     `gorm:"index;column:published_at"`
	Caption      *string        `gorm:"type:text;column:caption"`
	ThumbnailURL *string        `gorm:"type:text;column:thumbnail_url"`
	VideoURL     *string        `gorm:"type:text;column:video_url"`
	IsVideo      bool           `gorm:"not null;default:false;column:is_video"`
	Transcript   *string        `gorm:"type:text;column:transcript"`
	RawPayload   datatypes.JSON `gorm:"column:raw_payload"`
	CreatedAt    time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt    time.Time      `gorm:"not null;column:updated_at"`

	// set when a transcription attempt failed; orders the retry queue
	TranscriptAttemptedAt *time.Time `gorm:"column:transcript_attempted_at"`

	Source *Source `gorm:"foreignKey:SourceID;references:ID;constraint:OnDelete:SET NULL"`
}

// TableName specifies the table name for Reel
func (Reel) TableName() string {
	return "reels"
}

// AttributedTo reports whether the reel already points at the given source
func (r *Reel) AttributedTo(kind SourceKind, sourceID uint) bool {
	return r.SourceKind == kind && r.SourceID != nil && *r.SourceID == sourceID
}

// RawPost is one provider record. Keys vary by provider and endpoint.
type RawPost map[string]any

// ProjectContext is passed explicitly into every component call
type ProjectContext struct {
	ProjectID   uint
	ProjectName string
	Now         func() time.Time
}

// NewProjectContext builds a context for a stored project. A nil now uses time.Now.
func NewProjectContext(p *Project, now func() time.Time) ProjectContext {
	if now == nil {
		now = time.Now
	}
	return ProjectContext{ProjectID: p.ID, ProjectName: p.Name, Now: now}
}

// Time returns the context's notion of now in UTC
func (pc ProjectContext) Time() time.Time {
	if pc.Now == nil {
		return time.Now().UTC()
	}
	return pc.Now().UTC()
}

// SanitizeKey strips a leading @ or #, surrounding space and case
func SanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimLeft(key, "@#")
	key = strings.TrimRight(key, "/ ")
	return strings.ToLower(key)
}
