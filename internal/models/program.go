package models

import (
	"fmt"
	"time"
)

// Program is a full snapshot of a content record as owned by the CMS.
// The publisher serializes it into a ChangeEvent payload; the index
// stores the serialized form keyed by ID.
type Program struct {
	ID           int64
	Title        string
	Description  string
	Category     string
	Language     string
	Duration     time.Duration
	PublishDate  time.Time
	MediaType    string
	MediaURL     string
	ThumbnailURL string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot serializes the program into transport-safe primitives:
// timestamps as RFC 3339, the publish date as YYYY-MM-DD, and the
// duration as an H:MM:SS string.
func (p Program) Snapshot() map[string]any {
	return map[string]any{
		"id":            p.ID,
		"title":         p.Title,
		"description":   p.Description,
		"category":      p.Category,
		"language":      p.Language,
		"duration":      FormatDuration(p.Duration),
		"publish_date":  p.PublishDate.Format("2006-01-02"),
		"media_type":    p.MediaType,
		"media_url":     p.MediaURL,
		"thumbnail_url": p.ThumbnailURL,
		"metadata":      p.Metadata,
		"created_at":    p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// FormatDuration renders a duration as H:MM:SS with no zero padding on
// the hour component, e.g. 45m -> "0:45:00". Negative durations clamp
// to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
