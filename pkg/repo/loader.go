package repo

import (
	"bytes"
	"context"
	"time"

	"github.com/foomo/helpboard/pkg/metrics"
	"github.com/foomo/helpboard/post"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type updateResponse struct {
	repoRuntime int64
	err         error
}

func (r *Repo) PollRoutine(ctx context.Context) error {
	l := r.l.Named("routine.poll")
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case <-ticker.C:
			if _, err := r.tryUpdate(ctx); err != nil {
				l.Error("update failed", zap.Error(err))
			} else if s := r.Snapshot(); s != nil {
				l.Debug("update success", zap.Uint64("version", s.Version))
			}
		}
	}
}

// RefreshRoutine reloads the feed whenever another instance announced a change
func (r *Repo) RefreshRoutine(ctx context.Context) error {
	l := r.l.Named("routine.refresh")
	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case <-r.refreshChannel:
			if resp := r.Update(ctx); !resp.Success {
				l.Error("refresh failed", zap.String("error", resp.ErrorMessage))
			}
		}
	}
}

func (r *Repo) UpdateRoutine(ctx context.Context) error {
	l := r.l.Named("routine.update")
	for {
		select {
		case <-ctx.Done():
			l.Debug("routine canceled", zap.Error(ctx.Err()))
			return nil
		case resChan := <-r.updateInProgressChannel:
			start := time.Now()
			l := l.With(zap.String("run_id", uuid.New().String()))

			l.Debug("update started")

			repoRuntime, err := r.update(context.WithoutCancel(ctx))
			if err != nil {
				l.Error("update failed", zap.Error(err))
				metrics.UpdatesFailedCounter.WithLabelValues().Inc()
			} else {
				if !r.Loaded() {
					r.loaded.Store(true)
					l.Info("initial update success")
					if r.onLoaded != nil {
						r.onLoaded()
					}
				} else {
					l.Debug("update success")
				}
				metrics.UpdatesCompletedCounter.WithLabelValues().Inc()
			}

			resChan <- updateResponse{
				repoRuntime: repoRuntime,
				err:         err,
			}

			metrics.UpdateDuration.WithLabelValues().Observe(time.Since(start).Seconds())
		}
	}
}

// do not call directly, but only through channel
func (r *Repo) update(ctx context.Context) (repoRuntime int64, err error) {
	startTimeRepo := time.Now().UnixNano()
	posts, err := r.store.List(ctx)
	repoRuntime = time.Now().UnixNano() - startTimeRepo
	if err != nil {
		return repoRuntime, errors.Wrap(err, "failed to list posts")
	}

	snapshot := post.NewSnapshot(r.version.Add(1), posts)
	buffer := &bytes.Buffer{}
	if err := json.NewEncoder(buffer).Encode(snapshot); err != nil {
		return repoRuntime, errors.Wrap(err, "failed to encode snapshot")
	}

	r.l.Debug("loaded posts",
		zap.Uint64("version", snapshot.Version),
		zap.Int("posts", snapshot.Len()),
		zap.Int("length", buffer.Len()),
	)

	r.SetJSONBuffer(buffer)
	r.setSnapshot(snapshot)
	r.publish(snapshot)
	return repoRuntime, nil
}

// limit ressources and allow only one update request at once
func (r *Repo) tryUpdate(ctx context.Context) (repoRuntime int64, err error) {
	c := make(chan updateResponse, 1)
	select {
	case r.updateInProgressChannel <- c:
		r.l.Debug("update request added to queue")
	case <-ctx.Done():
		return 0, errors.Wrap(ctx.Err(), "update request canceled")
	}
	ur := <-c
	return ur.repoRuntime, ur.err
}

func (r *Repo) tryToRestoreCurrent(ctx context.Context) error {
	buffer := &bytes.Buffer{}
	if err := r.history.GetCurrent(ctx, buffer); err != nil {
		return err
	}

	snapshot := &post.Snapshot{}
	if err := json.Unmarshal(buffer.Bytes(), snapshot); err != nil {
		data := buffer.Bytes()
		if len(data) > 10 {
			r.l.Debug("could not parse json",
				zap.String("jsonStart", string(data[:10])),
				zap.String("jsonEnd", string(data[len(data)-10:])),
			)
		}
		return errors.Wrap(err, "failed to decode snapshot from history")
	}
	post.Sort(snapshot.Posts)
	snapshot.Category = post.FilterAll

	// versions handed out later must be greater than the restored one
	for {
		current := r.version.Load()
		if current >= snapshot.Version || r.version.CompareAndSwap(current, snapshot.Version) {
			break
		}
	}

	r.snapshotLock.Lock()
	if r.snapshot != nil && r.snapshot.Version >= snapshot.Version {
		r.snapshotLock.Unlock()
		return nil
	}
	r.snapshot = snapshot
	r.snapshotLock.Unlock()

	r.SetJSONBuffer(buffer)
	r.publish(snapshot)
	return nil
}
