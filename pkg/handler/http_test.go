package handler

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foomo/helpboard/pkg/auth"
	"github.com/foomo/helpboard/pkg/feed"
	"github.com/foomo/helpboard/pkg/newsletter"
	"github.com/foomo/helpboard/pkg/repo"
	"github.com/foomo/helpboard/pkg/repo/mock"
	"github.com/foomo/helpboard/pkg/storage"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/websocket"
)

const testPath = "/helpboard"

type testEnv struct {
	repo    *repo.Repo
	store   *mock.Store
	hub     *feed.Hub
	issuer  *auth.Issuer
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := zaptest.NewLogger(t)

	s := mock.GetMockStore(t)
	h, err := repo.NewHistory(l, repo.HistoryWithHistoryDir(t.TempDir()))
	require.NoError(t, err)
	hub := feed.NewHub(l)
	r := repo.New(l, s, h, repo.WithListener(hub.Publish))
	startRepo(t, r)
	require.Eventually(t, r.Loaded, 5*time.Second, 10*time.Millisecond)

	return newTestEnvWithRepo(t, r, s, hub)
}

// newTestEnvWithRepo serves r without starting it
func newTestEnvWithRepo(t *testing.T, r *repo.Repo, s *mock.Store, hub *feed.Hub) *testEnv {
	t.Helper()
	l := zaptest.NewLogger(t)

	issuer, err := auth.NewIssuer(l, auth.WithSecret([]byte("test")))
	require.NoError(t, err)

	fs, err := storage.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	return &testEnv{
		repo:   r,
		store:  s,
		hub:    hub,
		issuer: issuer,
		handler: NewHTTP(l, r, hub, issuer,
			WithPath(testPath),
			WithNewsletter(newsletter.New(l, fs)),
			WithKeepAlive(20*time.Millisecond),
		),
	}
}

// startRepo runs r until the test ends
func startRepo(t *testing.T, r *repo.Repo) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- r.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, testPath+path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, testPath+path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, PathSignIn, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reply struct {
		Reply responses.SignIn `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotEmpty(t, reply.Reply.Token)
	return reply.Reply.Token
}

func decodeReply[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var reply struct {
		Reply T `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	return reply.Reply
}

const validPost = `{"type":"need","name":"Ana","category":"Food","city":"Porto","description":"Groceries"}`

func TestCategories(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, PathCategories, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decodeReply[responses.Categories](t, rec)
	assert.Equal(t, post.Categories(), reply.Categories)
	assert.Equal(t, "Food", reply.Default)
	assert.Equal(t, post.FilterAll, reply.Filters[0])
}

func TestCreateAndList(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t)

	rec := e.do(t, http.MethodPost, PathPosts, token, validPost)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeReply[post.Post](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.UID)
	assert.Equal(t, post.StatusOpen, created.Status)

	rec = e.do(t, http.MethodGet, PathPosts, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decodeReply[post.Snapshot](t, rec)
	require.Len(t, snapshot.Posts, 1)
	assert.Equal(t, created.ID, snapshot.Posts[0].ID)

	rec = e.do(t, http.MethodGet, PathPosts+"?category=Transport", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot = decodeReply[post.Snapshot](t, rec)
	assert.Empty(t, snapshot.Posts)
	assert.Equal(t, "Transport", snapshot.Category)
}

func TestErrors(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t)

	tests := map[string]struct {
		method string
		path   string
		token  string
		body   string
		status int
		code   int
	}{
		"create without token": {http.MethodPost, PathPosts, "", validPost, http.StatusUnauthorized, responses.CodeUnauthorized},
		"create bad token":     {http.MethodPost, PathPosts, "nope", validPost, http.StatusUnauthorized, responses.CodeUnauthorized},
		"create broken json":   {http.MethodPost, PathPosts, token, `{"type":`, http.StatusBadRequest, responses.CodeInvalidJSON},
		"create missing city":  {http.MethodPost, PathPosts, token, `{"type":"need","name":"Ana","description":"x"}`, http.StatusBadRequest, responses.CodeValidation},
		"create bad type":      {http.MethodPost, PathPosts, token, `{"type":"gift","name":"Ana","city":"Porto","description":"x"}`, http.StatusBadRequest, responses.CodeValidation},
		"unknown category":     {http.MethodGet, PathPosts + "?category=Pets", "", "", http.StatusBadRequest, responses.CodeValidation},
		"resolve unknown":      {http.MethodPost, "/posts/nope/resolve", token, "", http.StatusNotFound, responses.CodeNotFound},
		"resolve without auth": {http.MethodPost, "/posts/nope/resolve", "", "", http.StatusUnauthorized, responses.CodeUnauthorized},
		"resolve with get":     {http.MethodGet, "/posts/nope/resolve", token, "", http.StatusMethodNotAllowed, responses.CodeNotAllowed},
		"posts with delete":    {http.MethodDelete, PathPosts, "", "", http.StatusMethodNotAllowed, responses.CodeNotAllowed},
		"stats with post":      {http.MethodPost, PathStats, "", "", http.StatusMethodNotAllowed, responses.CodeNotAllowed},
		"unknown route":        {http.MethodGet, "/nope", "", "", http.StatusNotFound, responses.CodeUnknownRoute},
		"newsletter invalid":   {http.MethodPost, PathNewsletter, "", `{"email":"nobody"}`, http.StatusBadRequest, responses.CodeValidation},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			reply := decodeReply[responses.Error](t, rec)
			assert.Equal(t, tt.status, reply.Status)
			assert.Equal(t, tt.code, reply.Code)
			assert.NotEmpty(t, reply.Message)
		})
	}
}

func TestResolve(t *testing.T) {
	e := newTestEnv(t)
	token := e.token(t)

	created := decodeReply[post.Post](t, e.do(t, http.MethodPost, PathPosts, token, validPost))

	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/posts/"+created.ID+"/resolve", token, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, post.StatusClosed, decodeReply[post.Post](t, rec).Status)
	}

	stats := decodeReply[post.Stats](t, e.do(t, http.MethodGet, PathStats, "", ""))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Needs)
	assert.Equal(t, 1, stats.Cities)
}

func TestUpdateAndRepo(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, PathUpdate, "", "{}")
	require.Equal(t, http.StatusOK, rec.Code)
	update := decodeReply[responses.Update](t, rec)
	assert.True(t, update.Success)

	rec = e.do(t, http.MethodGet, PathRepo, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	snapshot := decodeReply[post.Snapshot](t, rec)
	assert.Equal(t, update.Stats.Version, snapshot.Version)
}

func TestUpdateStoreDown(t *testing.T) {
	e := newTestEnv(t)
	e.store.Fail.Store(true)

	rec := e.do(t, http.MethodPost, PathUpdate, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	update := decodeReply[responses.Update](t, rec)
	assert.False(t, update.Success)
	assert.NotEmpty(t, update.ErrorMessage)
}

func TestNewsletter(t *testing.T) {
	e := newTestEnv(t)

	reply := decodeReply[responses.Newsletter](t, e.do(t, http.MethodPost, PathNewsletter, "", `{"email":"someone@example.org"}`))
	assert.True(t, reply.Subscribed)
	assert.False(t, reply.AlreadySubscribed)

	reply = decodeReply[responses.Newsletter](t, e.do(t, http.MethodPost, PathNewsletter, "", `{"email":"someone@example.org"}`))
	assert.True(t, reply.Subscribed)
	assert.True(t, reply.AlreadySubscribed)
}

func TestFeedEvents(t *testing.T) {
	e := newTestEnv(t)
	server := httptest.NewServer(e.handler)
	defer server.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL+testPath+PathFeed+"?category=Food", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan *post.Snapshot, 16)
	keepalive := make(chan struct{}, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == ": keepalive":
				keepalive <- struct{}{}
			case strings.HasPrefix(line, "data: "):
				s := &post.Snapshot{}
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), s); err == nil {
					events <- s
				}
			}
		}
	}()

	first := <-events
	assert.Empty(t, first.Posts)
	assert.Equal(t, "Food", first.Category)

	rec := e.do(t, http.MethodPost, PathPosts, e.token(t), validPost)
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case s := <-events:
		require.Len(t, s.Posts, 1)
		assert.Greater(t, s.Version, first.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot after create")
	}

	select {
	case <-keepalive:
	case <-time.After(5 * time.Second):
		t.Fatal("no keepalive")
	}
}

func TestFeedEventsInvalidCategory(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, PathFeed+"?category=Pets", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedWebSocket(t *testing.T) {
	e := newTestEnv(t)
	server := httptest.NewServer(e.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + testPath + PathFeedWS
	ws, err := websocket.Dial(url, "", server.URL)
	require.NoError(t, err)
	defer ws.Close()

	first := &post.Snapshot{}
	require.NoError(t, websocket.JSON.Receive(ws, first))
	assert.Equal(t, post.FilterAll, first.Category)

	rec := e.do(t, http.MethodPost, PathPosts, e.token(t), validPost)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	next := &post.Snapshot{}
	require.NoError(t, websocket.JSON.Receive(ws, next))
	assert.Greater(t, next.Version, first.Version)
	assert.Len(t, next.Posts, 1)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool {
		return e.hub.Len() == 0
	}, 5*time.Second, 10*time.Millisecond, "subscription not released")
}

func TestBodyTooLarge(t *testing.T) {
	e := newTestEnv(t)
	body := `{"email":"` + string(bytes.Repeat([]byte("a"), maxBodyBytes)) + `@example.org"}`
	rec := e.do(t, http.MethodPost, PathNewsletter, "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNotLoaded(t *testing.T) {
	l := zaptest.NewLogger(t)
	s := mock.GetMockStore(t)
	h, err := repo.NewHistory(l, repo.HistoryWithHistoryDir(t.TempDir()))
	require.NoError(t, err)
	hub := feed.NewHub(l)
	e := newTestEnvWithRepo(t, repo.New(l, s, h, repo.WithListener(hub.Publish)), s, hub)

	for _, path := range []string{PathPosts, PathStats, PathRepo} {
		t.Run(path, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, path, "", "")
			require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
			reply := decodeReply[responses.Error](t, rec)
			assert.Equal(t, http.StatusServiceUnavailable, reply.Status)
			assert.Equal(t, responses.CodeNotReady, reply.Code)
		})
	}
}

func TestRepoFromHistoryBeforeLoad(t *testing.T) {
	l := zaptest.NewLogger(t)
	s := mock.GetMockStore(t)
	historyDir := t.TempDir()

	// a previous run left its feed in the history
	previous, err := repo.NewHistory(l, repo.HistoryWithHistoryDir(historyDir))
	require.NoError(t, err)
	require.NoError(t, previous.Add(t.Context(), []byte(`{"version":7,"category":"All","posts":[]}`)))
	require.NoError(t, previous.Close())

	h, err := repo.NewHistory(l, repo.HistoryWithHistoryDir(historyDir))
	require.NoError(t, err)
	hub := feed.NewHub(l)
	r := repo.New(l, s, h, repo.WithListener(hub.Publish))
	e := newTestEnvWithRepo(t, r, s, hub)
	require.False(t, r.Loaded())

	rec := e.do(t, http.MethodGet, PathRepo, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snapshot := decodeReply[post.Snapshot](t, rec)
	assert.Equal(t, uint64(7), snapshot.Version)
	assert.Empty(t, snapshot.Posts)

	// the filtered views still wait for the first load
	rec = e.do(t, http.MethodGet, PathPosts, "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
