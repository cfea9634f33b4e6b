package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foomo/helpboard/pkg/bus"
	"github.com/foomo/helpboard/pkg/metrics"
	"github.com/foomo/helpboard/pkg/store"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/requests"
	"github.com/foomo/helpboard/responses"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotLoaded the feed has not been loaded from the store yet
var ErrNotLoaded = errors.New("feed not loaded yet")

// Repo holds the ordered feed snapshot of a post store
type (
	Repo struct {
		l                       *zap.Logger
		id                      string
		store                   store.Store
		history                 *History
		bus                     bus.Bus
		poll                    bool
		pollInterval            time.Duration
		now                     func() time.Time
		onLoaded                func()
		listeners               []func(*post.Snapshot)
		loaded                  *atomic.Bool
		version                 atomic.Uint64
		updateInProgressChannel chan chan updateResponse
		refreshChannel          chan struct{}
		snapshot                *post.Snapshot
		snapshotLock            sync.RWMutex
		jsonBuffer              *bytes.Buffer
		jsonBufferLock          sync.RWMutex
	}
	Option func(*Repo)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, s store.Store, history *History, opts ...Option) *Repo {
	inst := &Repo{
		l:                       l.Named("repo"),
		id:                      uuid.NewString(),
		store:                   s,
		history:                 history,
		pollInterval:            time.Minute,
		now:                     time.Now,
		loaded:                  &atomic.Bool{},
		updateInProgressChannel: make(chan chan updateResponse),
		refreshChannel:          make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// WithPoll periodically reloads the feed, for stores written by other processes
func WithPoll(v bool) Option {
	return func(o *Repo) {
		o.poll = v
	}
}

func WithPollInterval(v time.Duration) Option {
	return func(o *Repo) {
		o.pollInterval = v
	}
}

// WithBus announces writes and reloads on foreign changes
func WithBus(v bus.Bus) Option {
	return func(o *Repo) {
		o.bus = v
	}
}

// WithListener is called with every new snapshot, it must not block
func WithListener(fn func(*post.Snapshot)) Option {
	return func(o *Repo) {
		o.listeners = append(o.listeners, fn)
	}
}

func WithClock(fn func() time.Time) Option {
	return func(o *Repo) {
		o.now = fn
	}
}

// WithInstanceID sets the origin used on the bus
func WithInstanceID(v string) Option {
	return func(o *Repo) {
		o.id = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Getter
// ------------------------------------------------------------------------------------------------

func (r *Repo) Loaded() bool {
	return r.loaded.Load()
}

func (r *Repo) InstanceID() string {
	return r.id
}

func (r *Repo) Snapshot() *post.Snapshot {
	r.snapshotLock.RLock()
	defer r.snapshotLock.RUnlock()
	return r.snapshot
}

func (r *Repo) setSnapshot(v *post.Snapshot) {
	r.snapshotLock.Lock()
	defer r.snapshotLock.Unlock()
	r.snapshot = v
}

func (r *Repo) JSONBufferBytes() []byte {
	r.jsonBufferLock.RLock()
	defer r.jsonBufferLock.RUnlock()
	if r.jsonBuffer == nil {
		return nil
	}
	return r.jsonBuffer.Bytes()
}

func (r *Repo) SetJSONBuffer(v *bytes.Buffer) {
	r.jsonBufferLock.Lock()
	defer r.jsonBufferLock.Unlock()
	r.jsonBuffer = v
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (r *Repo) OnLoaded(fn func()) {
	r.onLoaded = fn
}

// GetPosts returns the current snapshot reduced to the filter
func (r *Repo) GetPosts(filter post.Filter) (*post.Snapshot, error) {
	s := r.Snapshot()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s.Filter(filter), nil
}

// GetStats counts the posts of the current snapshot
func (r *Repo) GetStats() (*post.Stats, error) {
	s := r.Snapshot()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s.Stats(), nil
}

// CreatePost validates and stores a new open post for uid
func (r *Repo) CreatePost(ctx context.Context, uid string, req *requests.CreatePost) (*post.Post, error) {
	if req == nil {
		return nil, errors.New("request must not be nil")
	}
	draft := req.Draft()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	p := &post.Post{
		ID:          uuid.NewString(),
		UID:         uid,
		Type:        draft.Type,
		Name:        draft.Name,
		Category:    draft.Category,
		City:        draft.City,
		Description: draft.Description,
		// stores keep millisecond precision
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
		Status:    post.StatusOpen,
	}
	if err := r.store.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "repo.CreatePost failed")
	}
	r.l.Info("post created",
		zap.String("id", p.ID),
		zap.String("type", string(p.Type)),
		zap.String("category", p.Category),
	)
	metrics.PostsCreatedCounter.WithLabelValues(string(p.Type), p.Category).Inc()

	r.afterWrite(ctx, bus.OperationCreate, p.ID)
	return p, nil
}

// ResolvePost marks a post as closed, resolving a closed post again is a no-op
func (r *Repo) ResolvePost(ctx context.Context, id string) (*post.Post, error) {
	if id == "" {
		return nil, &post.ValidationError{Field: "id", Message: "required"}
	}
	p, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Closed() {
		r.l.Debug("post already resolved", zap.String("id", id))
		return p, nil
	}
	if err := r.store.SetStatus(ctx, id, post.StatusClosed); err != nil {
		return nil, err
	}
	p.Status = post.StatusClosed
	r.l.Info("post resolved", zap.String("id", id))
	metrics.PostsResolvedCounter.WithLabelValues().Inc()

	r.afterWrite(ctx, bus.OperationResolve, id)
	return p, nil
}

// WriteFeedBytes writes the encoded feed snapshot to the provided writer.
// It serves from the in-memory buffer, falling back to the history only when empty.
// The result is wrapped as service response, e.g: {"reply": <snapshot>}
func (r *Repo) WriteFeedBytes(ctx context.Context, w io.Writer) error {
	data := r.JSONBufferBytes()
	if len(data) == 0 {
		var buf bytes.Buffer
		if err := r.history.GetCurrent(ctx, &buf); err != nil {
			return fmt.Errorf("failed to read feed from history: %w", err)
		}
		data = buf.Bytes()
	}

	if _, err := w.Write([]byte(`{"reply":`)); err != nil {
		return fmt.Errorf("failed to write feed JSON prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write feed JSON data: %w", err)
	}
	if _, err := w.Write([]byte(`}`)); err != nil {
		return fmt.Errorf("failed to write feed JSON suffix: %w", err)
	}
	return nil
}

// Update reloads the feed from the store
func (r *Repo) Update(ctx context.Context) (updateResponse *responses.Update) {
	floatSeconds := func(nanoSeconds int64) float64 {
		return float64(nanoSeconds) / float64(time.Second)
	}

	r.l.Debug("update triggered")

	start := time.Now()
	repoRuntime, err := r.tryUpdate(ctx)
	updateResponse = &responses.Update{}
	updateResponse.Stats.RepoRuntime = floatSeconds(repoRuntime)

	if err != nil {
		updateResponse.Success = false
		updateResponse.ErrorMessage = err.Error()
		updateResponse.Stats.NumberOfPosts = -1
		updateResponse.Stats.NumberOfOpenPosts = -1
		r.l.Error("failed to update feed", zap.Error(err))

		if r.Snapshot() == nil {
			if restoreErr := r.tryToRestoreCurrent(ctx); restoreErr != nil {
				r.l.Warn("failed to restore feed from history", zap.Error(restoreErr))
			} else {
				r.l.Info("restored feed from history")
			}
		}
	} else {
		updateResponse.Success = true
		if historyErr := r.history.Add(ctx, r.JSONBufferBytes()); historyErr != nil {
			r.l.Error("could not persist current feed in history", zap.Error(historyErr))
			metrics.HistoryPersistFailedCounter.WithLabelValues().Inc()
		}
		if s := r.Snapshot(); s != nil {
			stats := s.Stats()
			updateResponse.Stats.NumberOfPosts = stats.Total
			updateResponse.Stats.NumberOfOpenPosts = stats.Open
			updateResponse.Stats.Version = s.Version
		}
	}
	updateResponse.Stats.OwnRuntime = floatSeconds(time.Since(start).Nanoseconds()) - updateResponse.Stats.RepoRuntime
	return updateResponse
}

func (r *Repo) Start(ctx context.Context) error {
	if r.bus != nil {
		cancel, err := r.bus.Subscribe(r.onChange)
		if err != nil {
			return errors.Wrap(err, "failed to subscribe to bus")
		}
		defer cancel()
	}

	g, gCtx := errgroup.WithContext(ctx)

	l := r.l.Named("start")

	up := make(chan bool, 1)
	g.Go(func() error {
		l.Debug("starting update routine")
		up <- true
		return r.UpdateRoutine(gCtx)
	})
	l.Debug("waiting for UpdateRoutine")
	<-up

	g.Go(func() error {
		l.Debug("starting refresh routine")
		return r.RefreshRoutine(gCtx)
	})

	l.Debug("trying to restore previous feed")
	if err := r.tryToRestoreCurrent(ctx); errors.Is(err, os.ErrNotExist) {
		l.Info("previous feed snapshot does not exist")
	} else if err != nil {
		l.Warn("could not restore previous feed", zap.Error(err))
	} else {
		l.Info("restored previous feed")
	}

	if r.poll {
		g.Go(func() error {
			l.Debug("starting poll routine")
			return r.PollRoutine(gCtx)
		})
	}

	if resp := r.Update(gCtx); !resp.Success {
		l.Error("failed to update initial state",
			zap.String("error", resp.ErrorMessage),
			zap.Float64("own_runtime", resp.Stats.OwnRuntime),
			zap.Float64("repo_runtime", resp.Stats.RepoRuntime),
		)
	}

	return g.Wait()
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (r *Repo) afterWrite(ctx context.Context, op bus.Operation, id string) {
	if resp := r.Update(ctx); !resp.Success {
		r.l.Warn("write stored but feed not refreshed", zap.String("id", id), zap.String("error", resp.ErrorMessage))
	}
	if r.bus == nil {
		return
	}
	change := bus.Change{
		Origin:    r.id,
		Operation: op,
		PostID:    id,
		Time:      r.now().UTC(),
	}
	if err := r.bus.Publish(ctx, change); err != nil {
		r.l.Warn("failed to announce change", zap.String("id", id), zap.Error(err))
	}
}

func (r *Repo) onChange(change bus.Change) {
	if change.Origin == r.id {
		return
	}
	r.l.Debug("received change",
		zap.String("origin", change.Origin),
		zap.String("operation", string(change.Operation)),
		zap.String("id", change.PostID),
	)
	metrics.BusChangesCounter.WithLabelValues().Inc()
	select {
	case r.refreshChannel <- struct{}{}:
	default:
		// a refresh is already pending
	}
}

func (r *Repo) publish(s *post.Snapshot) {
	for _, fn := range r.listeners {
		fn(s)
	}
}
