package bus

import (
	"context"
	"time"
)

// Operation on a post
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationResolve Operation = "resolve"
)

// Change announces a write to the shared store
type Change struct {
	// Origin identifies the instance that wrote
	Origin    string    `json:"origin"`
	Operation Operation `json:"operation"`
	PostID    string    `json:"postId"`
	Time      time.Time `json:"time"`
}

// Handler is called for every received change
type Handler func(Change)

// Bus distributes changes between instances sharing one store
type Bus interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe registers fn until the returned cancel func is called
	Subscribe(fn Handler) (cancel func(), err error)
	Close() error
}
