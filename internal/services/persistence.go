package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/gcp"
	"github.com/Lllllllleong/qrawareness/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RecordStore is a remote home for session records.
type RecordStore interface {
	EnsureInitialized(ctx context.Context) error
	Upsert(ctx context.Context, rec models.Record) error
}

// Persister writes session records to the remote store, once per call, within a
// bounded timeout. Its errors are for logging only; the flow never depends on them.
type Persister struct {
	store   RecordStore
	timeout time.Duration
	logger  *zap.Logger

	group singleflight.Group
	ready atomic.Bool
}

// NewPersister wraps store. A nil store runs the persister in local-only mode.
func NewPersister(store RecordStore, timeout time.Duration, logger *zap.Logger) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{store: store, timeout: timeout, logger: logger}
}

// Enabled reports whether a remote store is configured.
func (p *Persister) Enabled() bool {
	return p.store != nil
}

// Save upserts rec. Untracked records are skipped. In local-only mode it returns
// gcp.ErrConfigurationMissing without logging.
func (p *Persister) Save(ctx context.Context, rec models.Record) error {
	if p.store == nil {
		return gcp.ErrConfigurationMissing
	}
	if !rec.Tracked {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	logCtx := p.logger.With(zap.String("sessionId", rec.SessionID), zap.Stringer("state", rec.State()))

	if err := p.ensureInitialized(ctx); err != nil {
		logCtx.Debug("Remote store initialization failed; keeping session in memory.", zap.Error(err))
		return err
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		logCtx.Debug("Remote write failed; keeping session in memory.", zap.Error(err))
		return err
	}
	logCtx.Debug("Session persisted.")
	return nil
}

// ensureInitialized runs the header check until it succeeds once. Concurrent first
// writes share a single check.
func (p *Persister) ensureInitialized(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}
	_, err, _ := p.group.Do("init", func() (interface{}, error) {
		if p.ready.Load() {
			return nil, nil
		}
		if err := p.store.EnsureInitialized(ctx); err != nil {
			return nil, err
		}
		p.ready.Store(true)
		return nil, nil
	})
	return err
}
