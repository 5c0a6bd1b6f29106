package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lectoria/storyforge-backend/internal/platform/logger"
	"github.com/lectoria/storyforge-backend/internal/types"
)

type StoryRepo interface {
	// Create inserts the published record. Returns ErrSlugTaken when the
	// unique slug constraint rejects the row.
	Create(ctx context.Context, tx *gorm.DB, story *types.Story) (*types.Story, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Story, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Story, error)
	ListRecentTitles(ctx context.Context, tx *gorm.DB, limit int) ([]string, error)
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: baseLog.With("repo", "StoryRepo")}
}

func (r *storyRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *storyRepo) Create(ctx context.Context, tx *gorm.DB, story *types.Story) (*types.Story, error) {
	if story == nil {
		return nil, fmt.Errorf("story required")
	}
	if err := r.conn(tx).WithContext(ctx).Create(story).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slug %q: %w", story.Slug, ErrSlugTaken)
		}
		return nil, err
	}
	return story, nil
}

func (r *storyRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Story, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var story types.Story
	err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&story).Error
	if err != nil {
		return nil, err
	}
	if story.ID == uuid.Nil {
		return nil, nil
	}
	return &story, nil
}

func (r *storyRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Story, error) {
	var story types.Story
	err := r.conn(tx).WithContext(ctx).
		Where("slug = ?", slug).
		Limit(1).
		Find(&story).Error
	if err != nil {
		return nil, err
	}
	if story.ID == uuid.Nil {
		return nil, nil
	}
	return &story, nil
}

func (r *storyRepo) ListRecentTitles(ctx context.Context, tx *gorm.DB, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	var titles []string
	err := r.conn(tx).WithContext(ctx).
		Model(&types.Story{}).
		Order("created_at DESC").
		Limit(limit).
		Pluck("title", &titles).Error
	if err != nil {
		return nil, err
	}
	return titles, nil
}
