package bus

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSubject carries post changes
const DefaultSubject = "helpboard.posts.changed"

type (
	// NATS distributes changes over a nats subject
	NATS struct {
		l       *zap.Logger
		nc      *nats.Conn
		subject string
	}
	NATSOption func(*natsOptions)

	natsOptions struct {
		subject       string
		name          string
		maxReconnects int
		reconnectWait time.Duration
	}
)

func NATSWithSubject(v string) NATSOption {
	return func(o *natsOptions) {
		o.subject = v
	}
}

func NATSWithName(v string) NATSOption {
	return func(o *natsOptions) {
		o.name = v
	}
}

// NewNATS connects to url, e.g. "nats://localhost:4222"
func NewNATS(l *zap.Logger, url string, opts ...NATSOption) (*NATS, error) {
	o := &natsOptions{
		subject:       DefaultSubject,
		name:          "helpboard",
		maxReconnects: -1,
		reconnectWait: time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	l = l.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name(o.name),
		nats.MaxReconnects(o.maxReconnects),
		nats.ReconnectWait(o.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to nats")
	}
	return &NATS{
		l:       l,
		nc:      nc,
		subject: o.subject,
	}, nil
}

func (b *NATS) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "failed to encode change")
	}
	return b.nc.Publish(b.subject, data)
}

func (b *NATS) Subscribe(fn Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		var change Change
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			b.l.Warn("dropping undecodable change", zap.Error(err))
			return
		}
		fn(change)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe")
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.l.Debug("unsubscribe failed", zap.Error(err))
		}
	}, nil
}

// Close flushes pending messages before closing the connection
func (b *NATS) Close() error {
	return b.nc.Drain()
}
