package models

import (
	"fmt"
	"time"
)

// Video listing limits.
const (
	MinVideoDuration = 30
	MaxVideoDuration = 300
	MaxActiveVideos  = 5
)

// Video is a short video listing owned by a user.
type Video struct {
	ID           int64     `db:"id" json:"id"`
	OwnerID      int64     `db:"owner_id" json:"owner_id"`
	Title        string    `db:"title" json:"title"`
	Link         *string   `db:"link" json:"link,omitempty"`
	ThumbnailRef string    `db:"thumbnail_ref" json:"thumbnail_ref"`
	Duration     int       `db:"duration" json:"duration"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewVideo creates a new active Video. An empty link is stored as nil.
func NewVideo(ownerID int64, title, link, thumbnailRef string, duration int) *Video {
	v := &Video{
		OwnerID:      ownerID,
		Title:        title,
		ThumbnailRef: thumbnailRef,
		Duration:     duration,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if link != "" {
		v.Link = &link
	}
	return v
}

// Validate checks the listing fields.
func (v *Video) Validate() error {
	if v.Title == "" {
		return fmt.Errorf("title is required")
	}
	if v.Duration < MinVideoDuration || v.Duration > MaxVideoDuration {
		return fmt.Errorf("duration must be between %d and %d seconds, got %d", MinVideoDuration, MaxVideoDuration, v.Duration)
	}
	return nil
}

// OlderThan reports whether v sorts before other for assignment:
// earliest created first, lowest id on ties.
func (v *Video) OlderThan(other *Video) bool {
	if !v.CreatedAt.Equal(other.CreatedAt) {
		return v.CreatedAt.Before(other.CreatedAt)
	}
	return v.ID < other.ID
}
