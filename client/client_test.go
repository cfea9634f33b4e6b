package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/foomo/helpboard/client"
	"github.com/foomo/helpboard/pkg/repo/mock"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		response, err := c.Update(t.Context())
		require.NoError(t, err)
		require.True(t, response.Success, "update has to return .Success true")
		assert.GreaterOrEqual(t, response.Stats.OwnRuntime, 0.0)
		assert.Positive(t, response.Stats.Version)
	})
}

func TestGetCategories(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		categories, err := c.GetCategories(t.Context())
		require.NoError(t, err)
		assert.Equal(t, post.Categories(), categories.Categories)
	})
}

func TestCreateRequiresSignIn(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		_, err := c.CreatePost(t.Context(), mock.MakeValidCreatePostRequest())
		require.Error(t, err)
		var replyErr *responses.Error
		require.ErrorAs(t, err, &replyErr)
		assert.Equal(t, http.StatusUnauthorized, replyErr.Status)
	})
}

func TestCreateResolve(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		identity, err := c.SignIn(t.Context())
		require.NoError(t, err)
		assert.Equal(t, identity.Token, c.Token())

		created, err := c.CreatePost(t.Context(), mock.MakeOfferRequest("Labor"))
		require.NoError(t, err)
		assert.Equal(t, identity.UID, created.UID)

		snapshot, err := c.GetPosts(t.Context(), "Labor")
		require.NoError(t, err)
		_, ok := snapshot.Get(created.ID)
		assert.True(t, ok)

		resolved, err := c.ResolvePost(t.Context(), created.ID)
		require.NoError(t, err)
		assert.True(t, resolved.Closed())

		stats, err := c.GetStats(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Resolved)

		repo, err := c.GetRepo(t.Context())
		require.NoError(t, err)
		got, ok := repo.Get(created.ID)
		require.True(t, ok)
		assert.True(t, got.Closed())
	})
}

func TestValidationError(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		_, err := c.SignIn(t.Context())
		require.NoError(t, err)

		request := mock.MakeValidCreatePostRequest()
		request.Description = ""
		_, err = c.CreatePost(t.Context(), request)
		var replyErr *responses.Error
		require.ErrorAs(t, err, &replyErr)
		assert.Equal(t, responses.CodeValidation, replyErr.Code)
		assert.Contains(t, replyErr.Message, "description")

		_, err = c.ResolvePost(t.Context(), "missing")
		require.ErrorAs(t, err, &replyErr)
		assert.Equal(t, http.StatusNotFound, replyErr.Status)

		_, err = c.GetPosts(t.Context(), "Pets")
		require.ErrorAs(t, err, &replyErr)
		assert.Equal(t, http.StatusBadRequest, replyErr.Status)
	})
}

func TestSubscribe(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		response, err := c.Subscribe(t.Context(), "someone@example.org")
		require.NoError(t, err)
		assert.True(t, response.Subscribed)
	})
}

func TestWatch(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		var (
			mu        sync.Mutex
			snapshots []*post.Snapshot
		)
		done := make(chan error, 1)
		go func() {
			done <- c.Watch(ctx, "Food", func(s *post.Snapshot) {
				mu.Lock()
				defer mu.Unlock()
				snapshots = append(snapshots, s)
			})
		}()

		count := func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(snapshots)
		}
		require.Eventually(t, func() bool { return count() >= 1 }, 5*time.Second, 10*time.Millisecond)

		_, err := c.SignIn(t.Context())
		require.NoError(t, err)
		created, err := c.CreatePost(t.Context(), mock.MakeValidCreatePostRequest())
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			_, ok := snapshots[len(snapshots)-1].Get(created.ID)
			return ok
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not stop")
		}

		mu.Lock()
		defer mu.Unlock()
		for i := 1; i < len(snapshots); i++ {
			assert.Greater(t, snapshots[i].Version, snapshots[i-1].Version)
			assert.Equal(t, "Food", snapshots[i].Category)
		}
	})
}

func TestWatchInvalidCategory(t *testing.T) {
	testWithClients(t, func(c *client.Client) {
		err := c.Watch(t.Context(), "Pets", func(*post.Snapshot) {
			t.Fatal("no snapshot expected")
		})
		require.Error(t, err)
	})
}

func benchmarkClientAndServerGetPosts(tb testing.TB, numGroups, numCalls int, c *client.Client) {
	tb.Helper()
	var wg sync.WaitGroup
	wg.Add(numGroups)
	for group := 0; group < numGroups; group++ {
		go func() {
			defer wg.Done()
			for i := 0; i < numCalls; i++ {
				if _, err := c.GetPosts(context.TODO(), post.FilterAll); err != nil {
					tb.Error(err)
					return
				}
			}
		}()
	}
	// Wait for all HTTP fetches to complete.
	wg.Wait()
}

func dump(t *testing.T, v interface{}) {
	t.Helper()
	jsonBytes, err := json.MarshalIndent(v, "", "	")
	if err != nil {
		t.Fatal("could not dump v", v, "err", err)
		return
	}
	t.Log(string(jsonBytes))
}
