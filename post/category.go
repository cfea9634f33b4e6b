package post

import (
	"strings"
)

// FilterAll matches every category
const FilterAll = "All"

var categories = []string{"Food", "Transport", "Guidance", "Labor", "Emergency", "Misc"}

// Categories returns the board categories in display order
func Categories() []string {
	return append([]string(nil), categories...)
}

// DefaultCategory is preselected for new posts
func DefaultCategory() string {
	return categories[0]
}

// IsCategory reports whether v is a known category
func IsCategory(v string) bool {
	for _, c := range categories {
		if c == v {
			return true
		}
	}
	return false
}

// Filter selects posts by category, the zero value matches everything
type Filter struct {
	Category string `json:"category"`
}

// NewFilter parses a category filter, "All" and "" select every post
func NewFilter(category string) (Filter, error) {
	category = strings.TrimSpace(category)
	if category == "" || category == FilterAll {
		return Filter{}, nil
	}
	if !IsCategory(category) {
		return Filter{}, &ValidationError{Field: "category", Message: "unknown category " + category}
	}
	return Filter{Category: category}, nil
}

// All reports whether the filter lets every post pass
func (f Filter) All() bool {
	return f.Category == ""
}

func (f Filter) Match(p *Post) bool {
	return f.All() || p.Category == f.Category
}

func (f Filter) String() string {
	if f.All() {
		return FilterAll
	}
	return f.Category
}
