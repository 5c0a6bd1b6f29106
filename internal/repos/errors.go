package repos

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrSlugTaken marks a unique-slug violation on insert. The pipeline treats
// it as non-retryable: the slug is a pure function of the title, so a retry
// would collide again.
var ErrSlugTaken = errors.New("slug already exists")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "sqlstate 23505")
}
