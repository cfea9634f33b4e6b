package newsletter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/foomo/helpboard/pkg/metrics"
	"github.com/foomo/helpboard/pkg/storage"
	"github.com/foomo/helpboard/post"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const KeyPrefix = "newsletter-"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// Newsletter keeps email subscriptions, one storage key per address
	Newsletter struct {
		l       *zap.Logger
		storage storage.Storage
		now     func() time.Time
		// serializes the lookup and the write of a subscription
		mu sync.Mutex
	}
	Subscription struct {
		Email        string    `json:"email"`
		SubscribedAt time.Time `json:"subscribedAt"`
	}
)

func New(l *zap.Logger, s storage.Storage) *Newsletter {
	return &Newsletter{
		l:       l.Named("newsletter"),
		storage: s,
		now:     time.Now,
	}
}

// Subscribe stores the address, subscribing twice keeps the first subscription.
// The returned flag is false when the address was already subscribed.
func (n *Newsletter) Subscribe(ctx context.Context, email string) (bool, error) {
	address, err := Normalize(email)
	if err != nil {
		return false, err
	}
	key := Key(address)

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.storage.Read(ctx, key); err == nil {
		n.l.Debug("already subscribed", zap.String("key", key))
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, errors.Wrap(err, "failed to look up subscription")
	}

	data, err := json.Marshal(Subscription{
		Email:        address,
		SubscribedAt: n.now().UTC(),
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to encode subscription")
	}
	if err := n.storage.Write(ctx, key, data); err != nil {
		return false, errors.Wrap(err, "failed to store subscription")
	}
	n.l.Info("subscribed", zap.String("key", key))
	metrics.NewsletterCounter.WithLabelValues().Inc()
	return true, nil
}

// Count the number of subscriptions
func (n *Newsletter) Count(ctx context.Context) (int, error) {
	keys, err := n.storage.List(ctx, KeyPrefix)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list subscriptions")
	}
	return len(keys), nil
}

// Normalize validates an email address and lower cases it
func Normalize(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", &post.ValidationError{Field: "email", Message: "required"}
	}
	address, err := mail.ParseAddress(email)
	if err != nil || !strings.Contains(address.Address, "@") || address.Address != email {
		return "", &post.ValidationError{Field: "email", Message: "invalid address"}
	}
	return strings.ToLower(address.Address), nil
}

// Key the storage key of an address, addresses never end up in key names
func Key(address string) string {
	sum := sha256.Sum256([]byte(address))
	return KeyPrefix + hex.EncodeToString(sum[:]) + ".json"
}
