package auth

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"
	"time"

	"github.com/foomo/helpboard/pkg/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultIssuer = "helpboard"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type (
	// Identity an anonymous user
	Identity struct {
		UID       string    `json:"uid"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	// Issuer signs and verifies anonymous identities
	Issuer struct {
		l      *zap.Logger
		name   string
		secret []byte
		ttl    time.Duration
		now    func() time.Time
	}
	Option func(*Issuer)
	claims struct {
		jwt.RegisteredClaims
		Anonymous bool `json:"anonymous"`
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// WithSecret sets the HMAC key, a random key is generated otherwise
func WithSecret(v []byte) Option {
	return func(o *Issuer) {
		o.secret = v
	}
}

func WithTTL(v time.Duration) Option {
	return func(o *Issuer) {
		o.ttl = v
	}
}

func WithName(v string) Option {
	return func(o *Issuer) {
		o.name = v
	}
}

func WithClock(fn func() time.Time) Option {
	return func(o *Issuer) {
		o.now = fn
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewIssuer(l *zap.Logger, opts ...Option) (*Issuer, error) {
	inst := &Issuer{
		l:    l.Named("auth"),
		name: DefaultIssuer,
		ttl:  30 * 24 * time.Hour,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(inst)
	}

	if inst.ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if len(inst.secret) == 0 {
		inst.l.Warn("no token secret configured, tokens will not survive a restart")
		inst.secret = make([]byte, 32)
		if _, err := rand.Read(inst.secret); err != nil {
			return nil, errors.Wrap(err, "failed to generate token secret")
		}
	}

	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// SignInAnonymously creates a new identity, every call yields a new uid
func (i *Issuer) SignInAnonymously(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := i.now().UTC().Truncate(time.Second)
	uid := uuid.NewString()
	expiresAt := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   uid,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Anonymous: true,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign token")
	}

	i.l.Debug("signed in anonymously", zap.String("uid", uid))
	metrics.SignInCounter.WithLabelValues().Inc()

	return &Identity{
		UID:       uid,
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature, issuer and expiry of a token
func (i *Issuer) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.name),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if parsed.Subject == "" {
		return nil, errors.Wrap(ErrInvalidToken, "subject is required")
	}

	return &Identity{
		UID:       parsed.Subject,
		Token:     token,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}, nil
}

// Authenticate verifies the bearer token of the request
func (i *Issuer) Authenticate(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, ErrMissingToken
	}
	return i.Verify(token)
}
