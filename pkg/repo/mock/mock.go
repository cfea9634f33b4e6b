package mock

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/foomo/helpboard/pkg/store"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/requests"
	"github.com/pkg/errors"
)

// ErrUnavailable returned by a failing Store
var ErrUnavailable = errors.New("store unavailable")

// Store wraps a store and fails all calls while Fail is set
type Store struct {
	store.Store
	Fail  atomic.Bool
	Lists atomic.Int64
}

// GetMockStore an in-memory store that is closed with the test
func GetMockStore(tb testing.TB) *Store {
	tb.Helper()
	s, err := store.NewDocStore(context.Background(), "mem://posts/id")
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		_ = s.Close()
	})
	return &Store{Store: s}
}

func (s *Store) Create(ctx context.Context, p *post.Post) error {
	if s.Fail.Load() {
		return ErrUnavailable
	}
	return s.Store.Create(ctx, p)
}

func (s *Store) Get(ctx context.Context, id string) (*post.Post, error) {
	if s.Fail.Load() {
		return nil, ErrUnavailable
	}
	return s.Store.Get(ctx, id)
}

func (s *Store) SetStatus(ctx context.Context, id string, status post.Status) error {
	if s.Fail.Load() {
		return ErrUnavailable
	}
	return s.Store.SetStatus(ctx, id, status)
}

func (s *Store) List(ctx context.Context) ([]*post.Post, error) {
	s.Lists.Add(1)
	if s.Fail.Load() {
		return nil, ErrUnavailable
	}
	return s.Store.List(ctx)
}

// MakeValidCreatePostRequest a need in the default category
func MakeValidCreatePostRequest() *requests.CreatePost {
	return &requests.CreatePost{
		Type:        post.KindNeed,
		Name:        "Ana",
		Category:    post.DefaultCategory(),
		City:        "Porto",
		Description: "Groceries for two weeks",
	}
}

// MakeOfferRequest an offer in the given category
func MakeOfferRequest(category string) *requests.CreatePost {
	return &requests.CreatePost{
		Type:        post.KindOffer,
		Name:        "Ben",
		Category:    category,
		City:        "Lisbon",
		Description: "I have a van on weekends",
	}
}
