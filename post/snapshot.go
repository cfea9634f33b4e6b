package post

import (
	"sort"
)

// Snapshot an ordered view of the board at one version
type Snapshot struct {
	Version  uint64  `json:"version"`
	Category string  `json:"category"`
	Posts    []*Post `json:"posts"`
}

// NewSnapshot orders the given posts newest first
func NewSnapshot(version uint64, posts []*Post) *Snapshot {
	ordered := make([]*Post, len(posts))
	copy(ordered, posts)
	Sort(ordered)
	return &Snapshot{
		Version:  version,
		Category: FilterAll,
		Posts:    ordered,
	}
}

// Sort orders posts by createdAt descending, ties by id descending
func Sort(posts []*Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// Filter returns a snapshot of the same version holding only matching posts
func (s *Snapshot) Filter(f Filter) *Snapshot {
	if f.All() {
		return s
	}
	filtered := &Snapshot{
		Version:  s.Version,
		Category: f.String(),
		Posts:    []*Post{},
	}
	for _, p := range s.Posts {
		if f.Match(p) {
			filtered.Posts = append(filtered.Posts, p)
		}
	}
	return filtered
}

// Get looks up a post by id
func (s *Snapshot) Get(id string) (*Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (s *Snapshot) Len() int {
	return len(s.Posts)
}
