package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

// UserRepository resolves user references for display
type UserRepository struct {
	db Executor
}

func NewUserRepository(db Executor) *UserRepository {
	return &UserRepository{db: db}
}

// FindRefs returns the users among ids that exist, keyed by id. The name is
// "first last" trimmed; it may be empty.
func (r *UserRepository) FindRefs(ctx context.Context, ids []int64) (map[int64]models.UserRef, error) {
	out := make(map[int64]models.UserRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q := query.From(constants.TableUsers).
		Select("id", "first_name", "last_name", "email").
		WhereIn("`id`", int64Args(ids)).
		Build()

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UserRef
		var first, last, email sql.NullString
		if err := rows.Scan(&u.ID, &first, &last, &email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Name = strings.TrimSpace(first.String + " " + last.String)
		u.Email = stringPtr(email)
		out[u.ID] = u
	}
	return out, rows.Err()
}
