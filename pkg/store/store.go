package store

import (
	"context"
	"fmt"
	"time"

	"github.com/foomo/helpboard/post"
)

const (
	TypeDocstore = "docstore"
	TypeSQLite   = "sqlite"
)

// Store defines the contract for post persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create persists a new post, the id must be set.
	Create(ctx context.Context, p *post.Post) error

	// Get returns the post with the given id or post.ErrNotFound.
	Get(ctx context.Context, id string) (*post.Post, error)

	// SetStatus changes the status of a post.
	// Returns post.ErrNotFound if the id does not exist.
	SetStatus(ctx context.Context, id string, status post.Status) error

	// List returns all posts, newest first.
	List(ctx context.Context) ([]*post.Post, error)

	// Close releases any resources held by the backend.
	Close() error
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open creates the backend for kind. For docstore dsn is a collection URL,
// for sqlite the path of the database file.
func Open(ctx context.Context, kind, dsn string) (Store, error) {
	switch kind {
	case TypeDocstore, "":
		return NewDocStore(ctx, dsn)
	case TypeSQLite:
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown store type: %s (supported: %s, %s)", kind, TypeDocstore, TypeSQLite)
	}
}
