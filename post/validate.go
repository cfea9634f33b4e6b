package post

import (
	"errors"
	"strings"
)

// ErrNotFound no post with the given id
var ErrNotFound = errors.New("post not found")

// ValidationError describes a rejected field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidationError reports whether err or one of its causes is a ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Draft holds the user supplied fields of a new post
type Draft struct {
	Type        Kind
	Name        string
	Category    string
	City        string
	Description string
}

// Normalize trims all text fields and applies the default category
func (d Draft) Normalize() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)
	d.City = strings.TrimSpace(d.City)
	d.Description = strings.TrimSpace(d.Description)
	if d.Category == "" {
		d.Category = DefaultCategory()
	}
	return d
}

// Validate expects a normalized draft
func (d Draft) Validate() error {
	if !d.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be one of need, offer"}
	}
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if !IsCategory(d.Category) {
		return &ValidationError{Field: "category", Message: "must be one of " + strings.Join(categories, ", ")}
	}
	if d.City == "" {
		return &ValidationError{Field: "city", Message: "required"}
	}
	if d.Description == "" {
		return &ValidationError{Field: "description", Message: "required"}
	}
	return nil
}
