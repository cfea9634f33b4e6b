package repo

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/foomo/helpboard/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	HistoryFeedJSONPrefix = "helpboard-feed-"
	HistoryFeedJSONSuffix = ".json"
	CurrentKey            = HistoryFeedJSONPrefix + "current" + HistoryFeedJSONSuffix
)

type (
	// History keeps the latest encoded feed snapshot plus a bounded number of backups
	History struct {
		l            *zap.Logger
		storage      storage.Storage
		historyDir   string
		historyLimit int
		now          func() time.Time
		mu           sync.RWMutex
	}
	HistoryOption func(*History)
)

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func HistoryWithHistoryLimit(v int) HistoryOption {
	return func(o *History) {
		o.historyLimit = v
	}
}

// HistoryWithHistoryDir sets the directory of the default filesystem storage
func HistoryWithHistoryDir(v string) HistoryOption {
	return func(o *History) {
		o.historyDir = v
	}
}

func HistoryWithStorage(s storage.Storage) HistoryOption {
	return func(o *History) {
		o.storage = s
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewHistory(l *zap.Logger, opts ...HistoryOption) (*History, error) {
	inst := &History{
		l:            l.Named("history"),
		historyDir:   "/var/lib/helpboard",
		historyLimit: 2,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(inst)
	}

	if inst.storage == nil {
		s, err := storage.NewFilesystemStorage(inst.historyDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create default filesystem storage: %w", err)
		}
		inst.storage = s
	}

	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Add writes the snapshot as a timestamped backup and as the current snapshot.
func (h *History) Add(ctx context.Context, jsonBytes []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	backupKey := HistoryFeedJSONPrefix + h.now().UTC().Format("2006-01-02T15-04-05.000000000Z") + HistoryFeedJSONSuffix
	h.l.Debug("writing snapshot",
		zap.String("backup", backupKey),
		zap.String("current", CurrentKey),
		zap.Int("bytes", len(jsonBytes)),
	)

	if err := h.storage.Write(ctx, backupKey, jsonBytes); err != nil {
		return errors.Wrap(err, "failed to write backup snapshot")
	}
	if err := h.storage.Write(ctx, CurrentKey, jsonBytes); err != nil {
		return errors.Wrap(err, "failed to write current snapshot")
	}
	if err := h.cleanup(ctx); err != nil {
		return errors.Wrap(err, "failed to clean up history")
	}
	return nil
}

// GetCurrent reads the current snapshot into buf, os.ErrNotExist if there is none.
func (h *History) GetCurrent(ctx context.Context, buf *bytes.Buffer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := h.storage.Read(ctx, CurrentKey)
	if err != nil {
		return err
	}
	_, err = buf.Write(data)
	return err
}

func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.storage != nil {
		return h.storage.Close()
	}
	return nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// getHistory returns the backup keys, newest first
func (h *History) getHistory(ctx context.Context) ([]string, error) {
	keys, err := h.storage.List(ctx, HistoryFeedJSONPrefix)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, key := range keys {
		if key != CurrentKey && strings.HasSuffix(key, HistoryFeedJSONSuffix) {
			files = append(files, key)
		}
	}
	return files, nil
}

func (h *History) cleanup(ctx context.Context) error {
	files, err := h.getFilesForCleanup(ctx, h.historyLimit)
	if err != nil {
		return err
	}
	for _, f := range files {
		h.l.Debug("removing outdated backup", zap.String("key", f))
		if err := h.storage.Delete(ctx, f); err != nil {
			return fmt.Errorf("could not remove %s: %w", f, err)
		}
	}
	return nil
}

func (h *History) getFilesForCleanup(ctx context.Context, historyVersions int) ([]string, error) {
	files, err := h.getHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate cleanup list")
	}
	if len(files) <= historyVersions {
		return nil, nil
	}
	return files[historyVersions:], nil
}
