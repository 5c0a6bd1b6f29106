package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Story is the published record of a successful story run. A row only ever
// exists with its audio and image already uploaded.
type Story struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug          string         `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Title         string         `gorm:"column:title;not null" json:"title"`
	Text          string         `gorm:"column:text;not null" json:"text"`
	EnhancedText  string         `gorm:"column:enhanced_text" json:"enhanced_text"`
	Level         string         `gorm:"column:level;not null;index" json:"level"`
	ReadingTime   string         `gorm:"column:reading_time" json:"reading_time"`
	AudioURL      string         `gorm:"column:audio_url;not null" json:"audio_url"`
	ImageURL      string         `gorm:"column:image_url;not null" json:"image_url"`
	AlignmentData datatypes.JSON `gorm:"column:alignment_data;type:jsonb" json:"alignment_data"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Story) TableName() string { return "story" }
