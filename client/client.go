package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/foomo/helpboard/pkg/handler"
	"github.com/foomo/helpboard/pkg/utils"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/requests"
	"github.com/foomo/helpboard/responses"
	"github.com/pkg/errors"
)

// Client a helpboard client
type Client struct {
	t     transport
	mu    sync.RWMutex
	token string
}

// New client with the given transport
func New(t transport) *Client {
	return &Client{t: t}
}

// NewHTTPClient client for the base url of a server, e.g. http://localhost:8080/helpboard
func NewHTTPClient(server string) (*Client, error) {
	if !utils.IsValidUrl(server) {
		return nil, errors.Errorf("invalid server url %q", server)
	}
	return New(NewHTTPTransport(server, &http.Client{Timeout: 30 * time.Second})), nil
}

// Token the token of the last sign in
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken reuse a token from an earlier sign in
func (c *Client) SetToken(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = v
}

// SignIn get a new anonymous identity, its token is used for all writes
func (c *Client) SignIn(ctx context.Context) (*responses.SignIn, error) {
	response := &responses.SignIn{}
	if err := c.t.call(ctx, http.MethodPost, handler.PathSignIn, "", nil, response); err != nil {
		return nil, err
	}
	c.SetToken(response.Token)
	return response, nil
}

// GetCategories the board categories
func (c *Client) GetCategories(ctx context.Context) (*responses.Categories, error) {
	response := &responses.Categories{}
	if err := c.t.call(ctx, http.MethodGet, handler.PathCategories, "", nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

// GetPosts the feed filtered by category, an empty category means all
func (c *Client) GetPosts(ctx context.Context, category string) (*post.Snapshot, error) {
	path := handler.PathPosts
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	response := &post.Snapshot{}
	if err := c.t.call(ctx, http.MethodGet, path, "", nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

// CreatePost post a need or an offer, requires a sign in
func (c *Client) CreatePost(ctx context.Context, request *requests.CreatePost) (*post.Post, error) {
	response := &post.Post{}
	if err := c.t.call(ctx, http.MethodPost, handler.PathPosts, c.Token(), request, response); err != nil {
		return nil, err
	}
	return response, nil
}

// ResolvePost mark a post as resolved, requires a sign in
func (c *Client) ResolvePost(ctx context.Context, id string) (*post.Post, error) {
	if id == "" {
		return nil, errors.New("post id must not be empty")
	}
	path := strings.Replace(handler.PathResolvePost, "{id}", url.PathEscape(id), 1)
	response := &post.Post{}
	if err := c.t.call(ctx, http.MethodPost, path, c.Token(), nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

// GetStats board numbers
func (c *Client) GetStats(ctx context.Context) (*post.Stats, error) {
	response := &post.Stats{}
	if err := c.t.call(ctx, http.MethodGet, handler.PathStats, "", nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

// Update tell the server to reload its feed
func (c *Client) Update(ctx context.Context) (*responses.Update, error) {
	response := &responses.Update{}
	if err := c.t.call(ctx, http.MethodPost, handler.PathUpdate, "", &requests.Update{}, response); err != nil {
		return nil, err
	}
	return response, nil
}

// GetRepo the whole unfiltered feed
func (c *Client) GetRepo(ctx context.Context) (*post.Snapshot, error) {
	response := &post.Snapshot{}
	if err := c.t.call(ctx, http.MethodGet, handler.PathRepo, "", nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

// Subscribe an email address to the newsletter
func (c *Client) Subscribe(ctx context.Context, email string) (*responses.Newsletter, error) {
	response := &responses.Newsletter{}
	if err := c.t.call(ctx, http.MethodPost, handler.PathNewsletter, "", &requests.Newsletter{Email: email}, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) ShutDown() {
	c.t.shutdown()
}
