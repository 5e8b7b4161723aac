package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	"rcaflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Postgres stores every collection in the documents table (see
// internal/platform/postgres/migrations). Filters use JSONB containment so
// they can use the GIN index.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var body []byte
	err := tx.Use(ctx, p.db).QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return body, nil
}

func (p *Postgres) Create(ctx context.Context, collection, id string, body []byte) error {
	_, err := tx.Use(ctx, p.db).ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)`, collection, id, body)
	if err != nil {
		if isUniqueViolation(err) {
			return conflict(collection, id)
		}
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) Put(ctx context.Context, collection, id string, body []byte) error {
	_, err := tx.Use(ctx, p.db).ExecContext(ctx, `
		INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = now()`, collection, id, body)
	if err != nil {
		if isUniqueViolation(err) {
			return conflict(collection, id)
		}
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update holds a row lock from read to write.
func (p *Postgres) Update(ctx context.Context, collection, id string, fn func([]byte) ([]byte, error)) ([]byte, error) {
	var next []byte
	err := tx.RunInTx(ctx, p.db, func(ctx context.Context) error {
		q := tx.Use(ctx, p.db)
		var current []byte
		err := q.QueryRowContext(ctx,
			`SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(collection, id)
		}
		if err != nil {
			return fmt.Errorf("lock %s/%s: %w", collection, id, err)
		}
		if next, err = fn(current); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE documents SET body = $3, updated_at = now() WHERE collection = $1 AND id = $2`,
			collection, id, next); err != nil {
			if isUniqueViolation(err) {
				return conflict(collection, id)
			}
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	res, err := tx.Use(ctx, p.db).ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(collection, id)
	}
	return nil
}

func (p *Postgres) Find(ctx context.Context, collection string, q Query) ([][]byte, error) {
	filter, err := filterObject(q.Filters)
	if err != nil {
		return nil, err
	}
	query := `SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb`
	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		dir := "ASC NULLS FIRST"
		if q.Descending {
			dir = "DESC NULLS LAST"
		}
		// jsonb ordering compares numbers numerically and strings lexically.
		query += fmt.Sprintf(` ORDER BY body->%s %s, id`, pq.QuoteLiteral(q.OrderBy), dir)
	} else {
		query += ` ORDER BY id`
	}
	args := []any{collection, filter}
	if q.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, q.Limit)
	}

	rows, err := tx.Use(ctx, p.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

// isUniqueViolation covers both the primary key and the per-collection unique
// indexes (user email, company name).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
