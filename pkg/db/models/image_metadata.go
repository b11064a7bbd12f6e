package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageMetadata records where a saved profile image lives on disk. Rows are
// append-only; readers pick the newest row for a user and must verify that
// ImagePath still exists.
type ImageMetadata struct {
	ID             string    `gorm:"column:id;type:text;primaryKey"`
	UserID         string    `gorm:"column:user_id;type:text;not null;index:idx_image_metadata_user_updated,priority:1"`
	ImagePath      string    `gorm:"column:image_path;type:text;not null"`
	LastUpdated    time.Time `gorm:"column:last_updated;not null;index:idx_image_metadata_user_updated,priority:2"`
	ImageSizeBytes int64     `gorm:"column:image_size_bytes;not null"`
}

func (ImageMetadata) TableName() string { return "image_metadata" }

// BeforeCreate assigns an id when the caller left it empty.
func (m *ImageMetadata) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
