package post

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Kind of a post
type Kind string

const (
	// KindNeed someone asks for help
	KindNeed Kind = "need"
	// KindOffer someone offers help
	KindOffer Kind = "offer"
)

// Status of a post
type Status string

const (
	// StatusOpen the post is still looking for a match
	StatusOpen Status = "open"
	// StatusClosed the post was marked as resolved
	StatusClosed Status = "closed"
)

// JustNow is displayed for posts the store has not timestamped yet
const JustNow = "Just now"

// Post a single request on the board
type Post struct {
	ID          string    `json:"id"`
	UID         string    `json:"uid"`
	Type        Kind      `json:"type"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	City        string    `json:"city"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      Status    `json:"status"`
}

func (k Kind) Valid() bool {
	return k == KindNeed || k == KindOffer
}

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Closed reports whether the post was resolved
func (p *Post) Closed() bool {
	return p.Status == StatusClosed
}

// Age renders the post age relative to now, e.g. "3 minutes ago"
func (p *Post) Age(now time.Time) string {
	if p.CreatedAt.IsZero() {
		return JustNow
	}
	return humanize.RelTime(p.CreatedAt, now, "ago", "from now")
}
