package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lectoria/storyforge-backend/internal/platform/logger"
	"github.com/lectoria/storyforge-backend/internal/types"
)

type QuestionSetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, set *types.QuestionSet) (*types.QuestionSet, error)
	ListRecentTitles(ctx context.Context, tx *gorm.DB, kind string, limit int) ([]string, error)
}

type questionSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionSetRepo(db *gorm.DB, baseLog *logger.Logger) QuestionSetRepo {
	return &questionSetRepo{db: db, log: baseLog.With("repo", "QuestionSetRepo")}
}

func (r *questionSetRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *questionSetRepo) Create(ctx context.Context, tx *gorm.DB, set *types.QuestionSet) (*types.QuestionSet, error) {
	if set == nil {
		return nil, fmt.Errorf("question set required")
	}
	if err := r.conn(tx).WithContext(ctx).Create(set).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slug %q: %w", set.Slug, ErrSlugTaken)
		}
		return nil, err
	}
	return set, nil
}

func (r *questionSetRepo) ListRecentTitles(ctx context.Context, tx *gorm.DB, kind string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.conn(tx).WithContext(ctx).Model(&types.QuestionSet{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var titles []string
	if err := q.Order("created_at DESC").Limit(limit).Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}
