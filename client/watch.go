package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/foomo/helpboard/pkg/handler"
	"github.com/foomo/helpboard/post"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

// Watch calls fn with every feed snapshot of the category until ctx is done
// or the server closes the connection. The first call carries the current feed.
func (c *Client) Watch(ctx context.Context, category string, fn func(*post.Snapshot)) error {
	origin := c.t.endpoint()
	u, err := url.Parse(origin + handler.PathFeedWS)
	if err != nil {
		return errors.Wrap(err, "invalid feed url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if category != "" {
		u.RawQuery = url.Values{"category": []string{category}}.Encode()
	}

	config, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return errors.Wrap(err, "invalid websocket config")
	}
	ws, err := config.DialContext(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "bad status") {
			return errors.Wrapf(err, "server rejected feed for category %q", category)
		}
		return errors.Wrap(err, "failed to connect to feed")
	}
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()

	for {
		snapshot := &post.Snapshot{}
		if err := websocket.JSON.Receive(ws, snapshot); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "feed closed")
		}
		fn(snapshot)
	}
}
