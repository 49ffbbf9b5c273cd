package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rowlift/rowlift/internal/core"
)

// DBTX is the database surface the Postgres target needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresTarget inserts row payloads directly into a table.
type PostgresTarget struct {
	db DBTX
}

// NewPostgresTarget creates a target writing through db.
func NewPostgresTarget(db DBTX) *PostgresTarget {
	return &PostgresTarget{db: db}
}

// Uploader returns an upload function inserting each payload into table.
// columns maps payload field names to table column names; fields absent from
// the map are skipped. Missing payload values insert as NULL.
func (t *PostgresTarget) Uploader(table string, columns map[string]string) core.UploadFunc {
	return func(ctx context.Context, payload *core.Payload) (any, error) {
		names := make([]string, 0, len(columns))
		placeholders := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))

		i := 0
		for field, column := range columns {
			i++
			names = append(names, quoteIdentifier(column))
			placeholders = append(placeholders, fmt.Sprintf("$%d", i))
			if v, ok := payload.Fields[field]; ok && v != "" {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}

		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdentifier(table),
			strings.Join(names, ", "),
			strings.Join(placeholders, ", "),
		)

		tag, err := t.db.Exec(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		return tag, nil
	}
}

// Success reports whether the insert affected exactly one row.
func (t *PostgresTarget) Success(result any) bool {
	tag, ok := result.(pgconn.CommandTag)
	return ok && tag.RowsAffected() == 1
}

// quoteIdentifier double-quotes a SQL identifier, escaping embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
