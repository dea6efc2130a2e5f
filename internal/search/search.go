// Package search serves the prefix lookups behind the giftee and friend
// autocompletion endpoints.
package search

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"noyel/pkg/db"
)

// DefaultLimit caps the number of suggestions returned when the caller passes none.
const DefaultLimit = 10

// Giftee is a giftee name and the number of the user's presents using it.
type Giftee struct {
	Name string `db:"name" json:"name"`
	Uses int64  `db:"uses" json:"uses"`
}

// Searcher answers autocompletion queries for one user.
type Searcher interface {
	Giftees(ctx context.Context, userID uuid.UUID, prefix string, limit int) ([]Giftee, error)
	Friends(ctx context.Context, userID uuid.UUID, prefix string, limit int) ([]string, error)
}

// PgxSearcher runs the lookups directly on a pgx pool.
type PgxSearcher struct {
	pool *pgxpool.Pool
}

// NewPgxSearcher returns a Searcher backed by pool.
func NewPgxSearcher(pool *pgxpool.Pool) *PgxSearcher {
	return &PgxSearcher{pool: pool}
}

const gifteeQuery = `
SELECT p.giftee AS name, COUNT(*) AS uses
FROM presents p
JOIN participants pa ON pa.present_id = p.id
WHERE pa.user_id = $1 AND LOWER(p.giftee) LIKE LOWER($2) ESCAPE '\'
GROUP BY p.giftee
ORDER BY uses DESC, p.giftee ASC
LIMIT $3`

const friendQuery = `
SELECT DISTINCT u.username
FROM participants mine
JOIN participants theirs ON theirs.present_id = mine.present_id AND theirs.user_id <> mine.user_id
JOIN users u ON u.id = theirs.user_id
WHERE mine.user_id = $1 AND LOWER(u.username) LIKE LOWER($2) ESCAPE '\'
ORDER BY u.username
LIMIT $3`

// Giftees returns the giftee names of the user's presents starting with prefix,
// most used first.
func (s *PgxSearcher) Giftees(ctx context.Context, userID uuid.UUID, prefix string, limit int) ([]Giftee, error) {
	out := []Giftee{}
	if err := db.Select(ctx, s.pool, &out, gifteeQuery, userID.String(), prefixPattern(prefix), clampLimit(limit)); err != nil {
		return nil, err
	}
	return out, nil
}

// Friends returns the usernames of the user's friends starting with prefix.
func (s *PgxSearcher) Friends(ctx context.Context, userID uuid.UUID, prefix string, limit int) ([]string, error) {
	out := []string{}
	if err := db.Select(ctx, s.pool, &out, friendQuery, userID.String(), prefixPattern(prefix), clampLimit(limit)); err != nil {
		return nil, err
	}
	return out, nil
}

func prefixPattern(prefix string) string {
	return escapeLike(strings.TrimSpace(prefix)) + "%"
}

// escapeLike neutralises LIKE wildcards so user input only ever matches literally.
func escapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > 50:
		return 50
	default:
		return limit
	}
}
