package store

import (
	"context"
	"io"
	"sync"

	"github.com/foomo/helpboard/post"
	"github.com/pkg/errors"
	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"

	// Import drivers for in-process and Firestore collections
	_ "gocloud.dev/docstore/gcpfirestore"
	_ "gocloud.dev/docstore/memdocstore"
)

const fieldCreatedAt = "createdAt"

// DocStore implements Store using gocloud.dev/docstore.
// Collection URLs look like "mem://posts/id" or
// "firestore://projects/<project>/databases/(default)/documents/posts?name_field=id".
// Writes and query iteration are serialized, memdocstore updates documents in place.
type DocStore struct {
	coll *docstore.Collection
	mu   sync.RWMutex
}

type document struct {
	ID          string `docstore:"id"`
	UID         string `docstore:"uid"`
	Type        string `docstore:"type"`
	Name        string `docstore:"name"`
	Category    string `docstore:"category"`
	City        string `docstore:"city"`
	Description string `docstore:"description"`
	CreatedAt   int64  `docstore:"createdAt"`
	Status      string `docstore:"status"`
}

// NewDocStore opens the collection at collectionURL.
func NewDocStore(ctx context.Context, collectionURL string) (*DocStore, error) {
	coll, err := docstore.OpenCollection(ctx, collectionURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open collection")
	}
	return &DocStore{coll: coll}, nil
}

// NewDocStoreFromCollection creates a new store from an existing collection.
func NewDocStoreFromCollection(coll *docstore.Collection) *DocStore {
	return &DocStore{coll: coll}
}

func (s *DocStore) Create(ctx context.Context, p *post.Post) error {
	if p.ID == "" {
		return errors.New("post id must not be empty")
	}
	doc := toDocument(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.coll.Create(ctx, doc); err != nil {
		return errors.Wrap(err, "failed to create post document")
	}
	return nil
}

func (s *DocStore) Get(ctx context.Context, id string) (*post.Post, error) {
	doc := &document{ID: id}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.coll.Get(ctx, doc); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, post.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get post document")
	}
	return doc.toPost(), nil
}

func (s *DocStore) SetStatus(ctx context.Context, id string, status post.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.coll.Update(ctx, &document{ID: id}, docstore.Mods{"status": string(status)})
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return post.ErrNotFound
		}
		return errors.Wrap(err, "failed to update post status")
	}
	return nil
}

func (s *DocStore) List(ctx context.Context) ([]*post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iter := s.coll.Query().OrderBy(fieldCreatedAt, docstore.Descending).Get(ctx)
	defer iter.Stop()

	var posts []*post.Post
	for {
		doc := &document{}
		err := iter.Next(ctx, doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to iterate posts")
		}
		posts = append(posts, doc.toPost())
	}
	// the collection only orders by createdAt
	post.Sort(posts)
	return posts, nil
}

func (s *DocStore) Close() error {
	return s.coll.Close()
}

func toDocument(p *post.Post) *document {
	return &document{
		ID:          p.ID,
		UID:         p.UID,
		Type:        string(p.Type),
		Name:        p.Name,
		Category:    p.Category,
		City:        p.City,
		Description: p.Description,
		CreatedAt:   toMillis(p.CreatedAt),
		Status:      string(p.Status),
	}
}

func (d *document) toPost() *post.Post {
	return &post.Post{
		ID:          d.ID,
		UID:         d.UID,
		Type:        post.Kind(d.Type),
		Name:        d.Name,
		Category:    d.Category,
		City:        d.City,
		Description: d.Description,
		CreatedAt:   fromMillis(d.CreatedAt),
		Status:      post.Status(d.Status),
	}
}
