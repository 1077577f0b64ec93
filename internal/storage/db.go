// Package storage is the SQL data-access layer for users, skateparks and
// everything hanging off them.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoChanges = errors.New("no updatable fields given")
)

// Querier represents the minimal database operations used by repositories.
// Both *pgxpool.Pool and pgxmock pools satisfy this interface.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var validate = validator.New()

//go:embed schema.sql
var schemaSQL string

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// ApplySchema creates any missing table. It is safe to run on every start.
func ApplySchema(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Repos bundles every repository over one connection.
type Repos struct {
	Users           *Users
	Skateparks      *Skateparks
	SkateparkImages *SkateparkImages
	Reviews         *Reviews
	Tricks          *Tricks
	TrickMedia      *TrickMedia
	Assets          *Assets
	Sessions        *Sessions
}

func New(db Querier) *Repos {
	images := &SkateparkImages{db: db}
	return &Repos{
		Users:           &Users{db: db},
		Skateparks:      &Skateparks{db: db, images: images},
		SkateparkImages: images,
		Reviews:         &Reviews{db: db},
		Tricks:          &Tricks{db: db},
		TrickMedia:      &TrickMedia{db: db},
		Assets:          &Assets{db: db},
		Sessions:        &Sessions{db: db},
	}
}

// Page bounds a list query. Zero values mean the first 20 rows.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// setList collects "col=$n" assignments for a whitelisted partial update.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.args = append(s.args, v)
	s.cols = append(s.cols, fmt.Sprintf("%s=$%d", col, len(s.args)))
}

func (s *setList) empty() bool { return len(s.cols) == 0 }

// arg appends v and returns its placeholder.
func (s *setList) arg(v any) string {
	s.args = append(s.args, v)
	return fmt.Sprintf("$%d", len(s.args))
}

func (s *setList) clause(extra ...string) string {
	return strings.Join(append(append([]string(nil), s.cols...), extra...), ", ")
}
