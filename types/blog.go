package types

import (
	"time"

	"gorm.io/datatypes"
)

// Blog status values. The zero value is an implicit draft; the
// transition to published is one-directional.
const StatusPublished = "PUBLISHED"

// Blog is the dual-state blog document. The published field set is only
// ever written by the publish transition, which copies it from the
// draft field set. Draft fields are written independently, one field
// group at a time, gated by divergence detection.
type Blog struct {
	Id            string     `json:"id" gorm:"primaryKey"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Description   string     `json:"description"`
	Content       string     `json:"content"`
	Views         int64      `json:"views"`
	Status        string     `json:"status"`
	Date          *time.Time `json:"date"`
	PublishedDate *time.Time `json:"published_date"`
	CoverImageKey string     `json:"cover_image_key"`
	CoverImageUrl string     `json:"cover_image_url"`

	DraftTitle         string         `json:"draft_title"`
	DraftSlug          string         `json:"draft_slug"`
	DraftContent       datatypes.JSON `json:"draft_content"`
	DraftDate          *time.Time     `json:"draft_date"`
	DraftCoverImageKey string         `json:"draft_cover_image_key"`
	DraftCoverImageUrl string         `json:"draft_cover_image_url"`
	DraftChanged       bool           `json:"draft_changed"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
