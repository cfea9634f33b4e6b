package requests

import (
	"github.com/foomo/helpboard/post"
)

// CreatePost - a new need or offer
type CreatePost struct {
	// need or offer
	Type post.Kind `json:"type"`
	// display name, the board is anonymous
	Name string `json:"name"`
	// one of post.Categories(), defaults to the first one
	Category string `json:"category"`
	// free text location
	City        string `json:"city"`
	Description string `json:"description"`
}

// Draft converts the request into a normalized draft
func (r *CreatePost) Draft() post.Draft {
	return post.Draft{
		Type:        r.Type,
		Name:        r.Name,
		Category:    r.Category,
		City:        r.City,
		Description: r.Description,
	}.Normalize()
}

// Update - request an update
type Update struct{}

// Newsletter - subscribe an email address
type Newsletter struct {
	Email string `json:"email"`
}
