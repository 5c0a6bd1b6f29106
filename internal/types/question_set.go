package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuestionSet is the published record of a vocabulary or grammar run.
type QuestionSet struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug      string         `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Level     string         `gorm:"column:level;not null;index" json:"level"`
	Kind      string         `gorm:"column:kind;not null;index" json:"kind"`
	Questions datatypes.JSON `gorm:"column:questions;type:jsonb;not null" json:"questions"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (QuestionSet) TableName() string { return "question_set" }
