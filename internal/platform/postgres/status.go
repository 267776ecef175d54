package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/vivaflow/internal/domain"
	"github.com/phrazzld/vivaflow/internal/store"
)

// statusColumns names the columns behind one status field. Field names are
// whitelisted by the domain, so they are safe to interpolate.
type statusColumns struct {
	table    string
	field    domain.StatusField
	notFound error
}

func (c statusColumns) changedAt() string {
	return string(c.field) + "_changed_at"
}

// updateStatusQuery builds the conditional UPDATE for a move to status. The
// allowed source statuses are bound from $4 onwards.
func (c statusColumns) updateStatusQuery(status domain.Status) (string, []domain.Status) {
	allowed := domain.AllowedFrom(status)
	placeholders := make([]string, len(allowed))
	for i := range allowed {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
	}
	query := fmt.Sprintf(
		`UPDATE %s SET %s = $1, %s = $2, updated_at = $2 WHERE id = $3 AND %s IN (%s)`,
		c.table, c.field, c.changedAt(), c.field, strings.Join(placeholders, ", "),
	)
	return query, allowed
}

// updateStatus moves one status field to status when its current value
// allows it. With zero rows updated it reads the row back to tell a missing
// entity from a forbidden transition.
func updateStatus(ctx context.Context, db store.DBTX, c statusColumns, id string, status domain.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	query, allowed := c.updateStatusQuery(status)
	args := make([]any, 0, 3+len(allowed))
	args = append(args, string(status), time.Now().UTC(), id)
	for _, s := range allowed {
		args = append(args, string(s))
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return MapError(err)
	}
	err = CheckRowsAffected(result, "")
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	var current string
	err = db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, c.field, c.table), id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.notFound
		}
		return MapError(err)
	}
	return fmt.Errorf("%w: %s %s: %s -> %s",
		domain.ErrInvalidStatusTransition, c.field, id, current, status)
}

// findInProgressOlderThan lists ids whose field has been INPROGRESS since
// before cutoff.
func findInProgressOlderThan(ctx context.Context, db store.DBTX, c statusColumns, cutoff time.Time) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE %s = $1 AND %s < $2 ORDER BY %s`,
		c.table, c.field, c.changedAt(), c.changedAt(),
	)
	rows, err := db.QueryContext(ctx, query, string(domain.StatusInProgress), cutoff)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return ids, nil
}
