package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/foomo/helpboard/post"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testSnapshot(version uint64) *post.Snapshot {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return post.NewSnapshot(version, []*post.Post{
		{ID: "a", Type: post.KindNeed, Category: "Food", CreatedAt: created, Status: post.StatusOpen},
		{ID: "b", Type: post.KindOffer, Category: "Transport", CreatedAt: created.Add(time.Minute), Status: post.StatusOpen},
	})
}

func receive(t *testing.T, sub *Subscription) *post.Snapshot {
	t.Helper()
	select {
	case s, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func TestSubscribeReceivesCurrent(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	h.Publish(testSnapshot(1))

	sub := h.Subscribe(post.Filter{})
	defer sub.Close()

	s := receive(t, sub)
	assert.Equal(t, uint64(1), s.Version)
	assert.Equal(t, 2, s.Len())
}

func TestSubscribeBeforePublish(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := h.Subscribe(post.Filter{})
	defer sub.Close()

	select {
	case <-sub.C():
		t.Fatal("nothing has been published yet")
	default:
	}

	h.Publish(testSnapshot(1))
	assert.Equal(t, uint64(1), receive(t, sub).Version)
}

func TestSubscribeFiltered(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	filter, err := post.NewFilter("Transport")
	require.NoError(t, err)

	sub := h.Subscribe(filter)
	defer sub.Close()
	h.Publish(testSnapshot(1))

	s := receive(t, sub)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "b", s.Posts[0].ID)
	assert.Equal(t, "Transport", s.Category)
}

func TestLatestWins(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := h.Subscribe(post.Filter{})
	defer sub.Close()

	for v := uint64(1); v <= 10; v++ {
		h.Publish(testSnapshot(v))
	}

	assert.Equal(t, uint64(10), receive(t, sub).Version)
	select {
	case s := <-sub.C():
		t.Fatalf("unexpected snapshot %d", s.Version)
	default:
	}
}

func TestOutdatedSnapshotDropped(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := h.Subscribe(post.Filter{})
	defer sub.Close()

	h.Publish(testSnapshot(5))
	assert.Equal(t, uint64(5), receive(t, sub).Version)

	h.Publish(testSnapshot(3))
	assert.Equal(t, uint64(5), h.Current().Version)
	select {
	case s := <-sub.C():
		t.Fatalf("unexpected snapshot %d", s.Version)
	default:
	}
}

func TestClose(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := h.Subscribe(post.Filter{})
	require.Equal(t, 1, h.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Len())

	_, ok := <-sub.C()
	assert.False(t, ok)

	// publishing after close must not panic
	h.Publish(testSnapshot(1))
}

func TestHubClose(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	subs := []*Subscription{h.Subscribe(post.Filter{}), h.Subscribe(post.Filter{})}

	require.NoError(t, h.Close())
	for _, sub := range subs {
		_, ok := <-sub.C()
		assert.False(t, ok)
	}
	assert.Equal(t, 0, h.Len())
}

func TestConcurrentPublish(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := h.Subscribe(post.Filter{})

	var (
		wg       sync.WaitGroup
		received []uint64
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		for s := range sub.C() {
			received = append(received, s.Version)
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(offset uint64) {
			defer wg.Done()
			for v := uint64(1); v <= 50; v++ {
				h.Publish(testSnapshot(v*8 + offset))
			}
		}(uint64(i))
	}
	wg.Wait()
	sub.Close()
	<-done

	require.NotEmpty(t, received)
	for i := 1; i < len(received); i++ {
		assert.Greater(t, received[i], received[i-1], "versions must increase")
	}
}
