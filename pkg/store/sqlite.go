package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/foomo/helpboard/post"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    uid TEXT NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    city TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at DESC, id DESC);
`

const sqliteColumns = "id, uid, type, name, category, city, description, created_at, status"

// SQLite implements Store on an embedded SQLite database.
type SQLite struct {
	sqlDB *sql.DB
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

func (s *SQLite) Create(ctx context.Context, p *post.Post) error {
	if p.ID == "" {
		return errors.New("post id must not be empty")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		"INSERT INTO posts ("+sqliteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.UID, string(p.Type), p.Name, p.Category, p.City, p.Description, toMillis(p.CreatedAt), string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*post.Post, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+sqliteColumns+" FROM posts WHERE id = ?", id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (s *SQLite) SetStatus(ctx context.Context, id string, status post.Status) error {
	res, err := s.sqlDB.ExecContext(ctx, "UPDATE posts SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update post status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post status: %w", err)
	}
	if n == 0 {
		return post.ErrNotFound
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]*post.Post, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+sqliteColumns+" FROM posts ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*post.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// Close closes the underlying SQLite database.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*post.Post, error) {
	var (
		p         post.Post
		kind      string
		status    string
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.UID, &kind, &p.Name, &p.Category, &p.City, &p.Description, &createdAt, &status); err != nil {
		return nil, err
	}
	p.Type = post.Kind(kind)
	p.Status = post.Status(status)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}
