package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultReaperInterval = time.Minute
	defaultReaperBatch    = 500
	reaperLockKey         = "reaper"
)

// Locker lets several replicas share one reaper. ok=false means another holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type SweepResult struct {
	Found     int
	Cancelled int
	Skipped   int
	Failed    int
}

// Reaper periodically cancels PENDING_PAYMENT orders older than the reservation TTL.
type Reaper struct {
	svc      *Service
	store    Store
	log      *zap.Logger
	interval time.Duration
	batch    int
	locker   Locker

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

type ReaperOption func(*Reaper)

func WithLocker(l Locker) ReaperOption { return func(r *Reaper) { r.locker = l } }
func WithInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}
func WithBatchSize(n int) ReaperOption {
	return func(r *Reaper) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewReaper(svc *Service, log *zap.Logger, opts ...ReaperOption) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reaper{
		svc:      svc,
		store:    svc.store,
		log:      log,
		interval: DefaultReaperInterval,
		batch:    defaultReaperBatch,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps once immediately, then every interval, until ctx is done or Stop is called.
func (r *Reaper) Run(ctx context.Context) {
	r.log.Info("starting expiry reaper",
		zap.Duration("interval", r.interval),
		zap.Duration("ttl", r.svc.ttl),
		zap.Int("batch", r.batch),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopCh:
			r.log.Info("expiry reaper stopped")
			return
		case <-ctx.Done():
			r.log.Info("expiry reaper cancelled")
			return
		}
	}
}

func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Reaper) tick(ctx context.Context) {
	res, err := r.Sweep(ctx)
	if err != nil {
		r.log.Error("reaper sweep failed", zap.Error(err))
		return
	}
	if res.Found > 0 {
		r.log.Info("reaper sweep done",
			zap.Int("found", res.Found),
			zap.Int("cancelled", res.Cancelled),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
		)
	}
}

// Sweep runs one pass. Overlapping calls return immediately with an empty result.
// A failure on one order is logged and does not stop the pass.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.log.Debug("reaper sweep already running, skipping tick")
		return res, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx, reaperLockKey, r.interval)
		if err != nil {
			// lock backend down: sweeping anyway is safe, CancelExpired is idempotent
			r.log.Warn("reaper lock unavailable", zap.Error(err))
		} else if !ok {
			r.log.Debug("reaper lock held elsewhere, skipping tick")
			return res, nil
		} else {
			defer release()
		}
	}

	cutoff := r.svc.now().UTC().Add(-r.svc.ttl)
	for {
		ids, err := r.store.ListExpiredPending(ctx, cutoff, r.batch)
		if err != nil {
			return res, err
		}
		res.Found += len(ids)

		progress := 0
		for _, id := range ids {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			_, err := r.svc.CancelExpired(ctx, id)
			switch {
			case err == nil:
				res.Cancelled++
				progress++
			case errors.Is(err, ErrNotPending):
				res.Skipped++
				progress++
			default:
				res.Failed++
				r.log.Error("failed to cancel expired order", zap.String("order_id", id), zap.Error(err))
			}
		}

		if len(ids) < r.batch || progress == 0 {
			return res, nil
		}
	}
}
