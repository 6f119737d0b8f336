package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kioku/pkg/domain/model"
	"github.com/secmon-lab/kioku/pkg/utils/errutil"
	"github.com/secmon-lab/kioku/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWarmConcurrency bounds how many channels are warmed at once
	DefaultWarmConcurrency = 4
)

// RangeLoader loads a channel range through the cache
type RangeLoader interface {
	LoadRange(ctx context.Context, channelID string, r model.DateRange) ([]*model.Message, error)
}

// WarmTarget is a channel kept warm for the trailing window
type WarmTarget struct {
	ChannelID string
	Window    time.Duration
}

// CacheWarmer periodically loads [now-window, now] of configured channels so that
// reads of recent history are served from memory.
//
// Every cycle only requests the tail since the previous cycle from the backing
// source; the cache coalesces it into the existing entry.
type CacheWarmer struct {
	loader      RangeLoader
	targets     []WarmTarget
	interval    time.Duration
	concurrency int
	now         func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type WarmerOption func(*CacheWarmer)

func WithConcurrency(n int) WarmerOption {
	return func(w *CacheWarmer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) WarmerOption {
	return func(w *CacheWarmer) {
		w.now = now
	}
}

// NewCacheWarmer creates a new warmer. interval must be positive.
func NewCacheWarmer(loader RangeLoader, targets []WarmTarget, interval time.Duration, opts ...WarmerOption) (*CacheWarmer, error) {
	if loader == nil {
		return nil, goerr.New("loader is required")
	}
	if interval <= 0 {
		return nil, goerr.New("warm interval must be positive", goerr.V("interval", interval))
	}
	for _, t := range targets {
		if t.ChannelID == "" {
			return nil, goerr.New("warm target channel is required")
		}
		if t.Window <= 0 {
			return nil, goerr.New("warm window must be positive", goerr.V(model.ChannelIDKey, t.ChannelID))
		}
	}

	w := &CacheWarmer{
		loader:      loader,
		targets:     targets,
		interval:    interval,
		concurrency: DefaultWarmConcurrency,
		now:         time.Now,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins the background warm loop. The first cycle runs immediately in the
// background and does not block the caller.
func (w *CacheWarmer) Start(ctx context.Context) error {
	logging.From(ctx).Info("Cache warmer starting",
		"interval", w.interval.String(),
		"channels", len(w.targets))

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for the running cycle to finish
func (w *CacheWarmer) Stop() {
	w.stopOnce.Do(func() {
		logging.Default().Info("Cache warmer stopping")
		close(w.stopCh)
	})
	<-w.doneCh
	logging.Default().Info("Cache warmer stopped")
}

func (w *CacheWarmer) run(ctx context.Context) {
	defer close(w.doneCh)

	// cycleCtx is cancelled on Stop so a slow fetch does not hold shutdown
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-cycleCtx.Done():
		}
	}()

	if err := w.Warm(cycleCtx); err != nil {
		_ = errutil.Handle(ctx, err, "Initial cache warm failed (will retry next interval)")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Warm(cycleCtx); err != nil {
				_ = errutil.Handle(ctx, err, "Cache warm failed (will retry next interval)")
			}

		case <-w.stopCh:
			logging.From(ctx).Info("Cache warmer received stop signal")
			return

		case <-ctx.Done():
			logging.From(ctx).Info("Cache warmer context cancelled")
			return
		}
	}
}

// Warm performs one cycle over all targets. A failing channel does not stop the
// others; the first error is returned after every channel was attempted.
func (w *CacheWarmer) Warm(ctx context.Context) error {
	startTime := w.now()
	end := startTime.UTC().Truncate(time.Millisecond)

	var (
		mu       sync.Mutex
		firstErr error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)
	for _, target := range w.targets {
		eg.Go(func() error {
			r := model.DateRange{Start: end.Add(-target.Window), End: end}
			msgs, err := w.loader.LoadRange(egCtx, target.ChannelID, r)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = goerr.Wrap(err, "failed to warm channel",
						goerr.V(model.ChannelIDKey, target.ChannelID),
						goerr.V("range", r.String()))
				}
				mu.Unlock()
				return nil
			}

			logging.From(ctx).Debug("Channel warmed",
				model.ChannelIDKey, target.ChannelID,
				"messages", len(msgs))
			return nil
		})
	}
	_ = eg.Wait()

	logging.From(ctx).Info("Cache warm completed",
		"channels", len(w.targets),
		"duration", time.Since(startTime).String())

	return firstErr
}
