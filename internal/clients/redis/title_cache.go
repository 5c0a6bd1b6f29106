package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lectoria/storyforge-backend/internal/platform/logger"
)

// TitleCache keeps a short rolling window of recently published titles per
// kind, feeding the avoid-titles hint into content generation. It is a hint,
// not a uniqueness guarantee; the slug constraint stays authoritative.
type TitleCache interface {
	RecentTitles(ctx context.Context, kind string, limit int) ([]string, error)
	PushTitle(ctx context.Context, kind string, title string) error
	Close() error
}

type titleCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

const (
	titleKeyPrefix = "recent_titles:"
	titleWindow    = 50
)

func NewTitleCache(log *logger.Logger) (TitleCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &titleCache{
		log: log.With("service", "RedisTitleCache"),
		rdb: rdb,
	}, nil
}

func (c *titleCache) RecentTitles(ctx context.Context, kind string, limit int) ([]string, error) {
	if limit <= 0 || limit > titleWindow {
		limit = titleWindow
	}
	titles, err := c.rdb.LRange(ctx, titleKeyPrefix+kind, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return titles, nil
}

func (c *titleCache) PushTitle(ctx context.Context, kind string, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	key := titleKeyPrefix + kind
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, title)
	pipe.LTrim(ctx, key, 0, titleWindow-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis push title: %w", err)
	}
	return nil
}

func (c *titleCache) Close() error { return c.rdb.Close() }
