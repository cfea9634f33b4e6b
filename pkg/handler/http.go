package handler

import (
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/foomo/helpboard/pkg/auth"
	"github.com/foomo/helpboard/pkg/feed"
	"github.com/foomo/helpboard/pkg/metrics"
	"github.com/foomo/helpboard/pkg/newsletter"
	"github.com/foomo/helpboard/pkg/repo"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	HTTP struct {
		l          *zap.Logger
		path       string
		repo       *repo.Repo
		hub        *feed.Hub
		issuer     *auth.Issuer
		newsletter *newsletter.Newsletter
		keepAlive  time.Duration
		mux        *http.ServeMux
	}
	HTTPOption func(*HTTP)
	// endpoint returns the reply to wrap or an error to map onto a status
	endpoint func(w http.ResponseWriter, r *http.Request) (status int, reply any, err error)
	// jsonError a request body that could not be decoded
	jsonError struct {
		err error
	}
)

func (e *jsonError) Error() string {
	return "could not read incoming json: " + e.err.Error()
}

func (e *jsonError) Unwrap() error {
	return e.err
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTP returns a shiny new web server
func NewHTTP(l *zap.Logger, repo *repo.Repo, hub *feed.Hub, issuer *auth.Issuer, opts ...HTTPOption) http.Handler {
	inst := &HTTP{
		l:         l.Named("http"),
		path:      "/helpboard",
		repo:      repo,
		hub:       hub,
		issuer:    issuer,
		keepAlive: 30 * time.Second,
		mux:       http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(inst)
	}
	inst.path = strings.TrimSuffix(inst.path, "/")
	inst.routes()

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithPath(v string) HTTPOption {
	return func(o *HTTP) {
		o.path = v
	}
}

// WithNewsletter enables the newsletter route
func WithNewsletter(v *newsletter.Newsletter) HTTPOption {
	return func(o *HTTP) {
		o.newsletter = v
	}
}

// WithKeepAlive sets the interval of keepalive comments on the event stream
func WithKeepAlive(v time.Duration) HTTPOption {
	return func(o *HTTP) {
		o.keepAlive = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) routes() {
	h.mux.HandleFunc(h.path+PathCategories, h.handle(RouteGetCategories, http.MethodGet, h.getCategories))
	h.mux.HandleFunc(h.path+PathPosts, h.dispatch(RouteGetPosts, map[string]http.HandlerFunc{
		http.MethodGet:  h.handle(RouteGetPosts, http.MethodGet, h.getPosts),
		http.MethodPost: h.handle(RouteCreatePost, http.MethodPost, h.createPost),
	}))
	h.mux.HandleFunc(h.path+PathResolvePost, h.handle(RouteResolvePost, http.MethodPost, h.resolvePost))
	h.mux.HandleFunc(h.path+PathStats, h.handle(RouteGetStats, http.MethodGet, h.getStats))
	h.mux.HandleFunc(h.path+PathUpdate, h.handle(RouteUpdate, http.MethodPost, h.update))
	h.mux.HandleFunc(h.path+PathRepo, h.stream(RouteGetRepo, h.getRepo))
	h.mux.HandleFunc(h.path+PathFeed, h.stream(RouteFeed, h.serveEvents))
	h.mux.HandleFunc(h.path+PathFeedWS, h.stream(RouteFeedWebSocket, h.serveWebSocket))
	h.mux.HandleFunc(h.path+PathSignIn, h.handle(RouteSignIn, http.MethodPost, h.signIn))
	if h.newsletter != nil {
		h.mux.HandleFunc(h.path+PathNewsletter, h.handle(RouteNewsletter, http.MethodPost, h.subscribeNewsletter))
	}
	h.mux.HandleFunc("/", h.handle(RouteUnknown, "", func(_ http.ResponseWriter, r *http.Request) (int, any, error) {
		return 0, nil, responses.NewStatusError(http.StatusNotFound, responses.CodeUnknownRoute, "unknown route: "+r.URL.Path)
	}))
}

// dispatch picks the handler by method, all of them check their method again
func (h *HTTP) dispatch(route Route, handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fn, ok := handlers[r.Method]; ok {
			fn(w, r)
			return
		}
		allowed := make([]string, 0, len(handlers))
		for method := range handlers {
			allowed = append(allowed, method)
		}
		slices.Sort(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		h.writeError(w, r, route, time.Now(),
			responses.NewStatusError(http.StatusMethodNotAllowed, responses.CodeNotAllowed, "method not allowed"))
	}
}

// handle wraps an endpoint: method check, reply envelope, error mapping and metrics
func (h *HTTP) handle(route Route, method string, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if method != "" && r.Method != method {
			w.Header().Set("Allow", method)
			h.writeError(w, r, route, start,
				responses.NewStatusError(http.StatusMethodNotAllowed, responses.CodeNotAllowed, "method not allowed"))
			return
		}

		status, reply, err := fn(w, r)
		if err != nil {
			h.writeError(w, r, route, start, err)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		h.writeReply(w, status, reply)
		h.observe(route, status, start)
	}
}

// stream wraps handlers writing their own response body
func (h *HTTP) stream(route Route, fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			h.writeError(w, r, route, start,
				responses.NewStatusError(http.StatusMethodNotAllowed, responses.CodeNotAllowed, "method not allowed"))
			return
		}
		if err := fn(w, r); err != nil {
			h.writeError(w, r, route, start, err)
			return
		}
		h.observe(route, http.StatusOK, start)
	}
}

func (h *HTTP) observe(route Route, status int, start time.Time) {
	s := strconv.Itoa(status)
	metrics.ServiceRequestCounter.WithLabelValues(string(route), s).Inc()
	metrics.ServiceRequestDuration.WithLabelValues(string(route), s).Observe(time.Since(start).Seconds())
}

func (h *HTTP) writeError(w http.ResponseWriter, r *http.Request, route Route, start time.Time, err error) {
	reply := errorReply(err)
	if reply.Status >= http.StatusInternalServerError {
		h.l.Error("request failed", zap.String("route", string(route)), zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.l.Debug("request rejected", zap.String("route", string(route)), zap.String("path", r.URL.Path), zap.Error(err))
	}
	h.writeReply(w, reply.Status, reply)
	h.observe(route, reply.Status, start)
}

// writeReply encodes the reply as {"reply": ...}
func (h *HTTP) writeReply(w http.ResponseWriter, status int, reply any) {
	bytes, err := json.Marshal(map[string]any{
		"reply": reply,
	})
	if err != nil {
		h.l.Error("could not encode reply", zap.Error(err))
		status = http.StatusInternalServerError
		bytes = []byte(`{"reply":{"status":500,"code":3,"message":"could not encode reply"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes)
}

// errorReply maps an error onto the status and code the client sees
func errorReply(err error) *responses.Error {
	var (
		re *responses.Error
		je *jsonError
		mb *http.MaxBytesError
	)
	switch {
	case errors.As(err, &re):
		return re
	case errors.As(err, &mb):
		return responses.NewStatusError(http.StatusRequestEntityTooLarge, responses.CodeInvalidRequest, "request body too large")
	case errors.As(err, &je):
		return responses.NewStatusError(http.StatusBadRequest, responses.CodeInvalidJSON, je.Error())
	case post.IsValidationError(err):
		return responses.NewStatusError(http.StatusBadRequest, responses.CodeValidation, err.Error())
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return responses.NewStatusError(http.StatusUnauthorized, responses.CodeUnauthorized, err.Error())
	case errors.Is(err, post.ErrNotFound):
		return responses.NewStatusError(http.StatusNotFound, responses.CodeNotFound, err.Error())
	case errors.Is(err, repo.ErrNotLoaded):
		return responses.NewStatusError(http.StatusServiceUnavailable, responses.CodeNotReady, err.Error())
	default:
		return responses.NewError(responses.CodeInternal, "internal error "+err.Error())
	}
}

func decode(r *http.Request, w http.ResponseWriter, v any) error {
	if r.Body == nil {
		return &jsonError{err: errors.New("empty request body")}
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			return mb
		}
		return errors.Wrap(err, "failed to read incoming request")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &jsonError{err: err}
	}
	return nil
}

func filterFromRequest(r *http.Request) (post.Filter, error) {
	return post.NewFilter(r.URL.Query().Get("category"))
}
