package bus

import (
	"context"
	"sync"
)

// Local delivers changes to subscribers of the same process
type Local struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func NewLocal() *Local {
	return &Local{
		handlers: map[int]Handler{},
	}
}

// Publish calls all handlers synchronously
func (b *Local) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(change)
	}
	return nil
}

func (b *Local) Subscribe(fn Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}, nil
}

func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[int]Handler{}
	return nil
}
