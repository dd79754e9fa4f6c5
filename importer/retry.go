package importer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-bookshop-client/config"
)

type pendingRetry struct {
	timer   *time.Timer
	attempt int
}

// retryManager re-issues failed catalog requests with capped exponential
// backoff. outstanding counts retries that are scheduled but not yet handed
// back to the collector, so the importer can wait for them before finishing.
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	idle         *sync.Cond
	attempts     map[string]int
	timers       map[string]pendingRetry
	totalRetries int
	drained      int
	outstanding  int
	stopped      bool
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	rm := &retryManager{
		cfg:      cfg,
		attempts: make(map[string]int),
		timers:   make(map[string]pendingRetry),
		metrics:  metrics,
		ctx:      context.Background(),
	}
	rm.idle = sync.NewCond(&rm.mu)
	return rm
}

// Schedule arranges for req to be retried. It reports false when the
// request has used up its retries or the manager is stopped.
func (rm *retryManager) Schedule(req *colly.Request) bool {
	if rm.cfg.MaxRetries == 0 || req == nil || req.URL == nil {
		return false
	}
	key := req.URL.String()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped || rm.ctx.Err() != nil {
		return false
	}

	attempt := rm.attempts[key]
	if attempt >= rm.cfg.MaxRetries {
		return false
	}

	attempt++
	rm.attempts[key] = attempt
	rm.totalRetries++
	rm.metrics.IncRetries()

	rm.stopTimerLocked(key)
	rm.outstanding++
	rm.timers[key] = pendingRetry{
		attempt: attempt,
		timer: time.AfterFunc(rm.backoff(attempt), func() {
			rm.fire(key, attempt, req)
		}),
	}
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if limit := rm.cfg.RetryBackoffMax; limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

func (rm *retryManager) stopTimerLocked(key string) {
	if p, ok := rm.timers[key]; ok {
		if p.timer.Stop() {
			rm.doneLocked()
		}
		delete(rm.timers, key)
	}
}

func (rm *retryManager) fire(key string, attempt int, req *colly.Request) {
	rm.mu.Lock()
	stopped := rm.stopped
	ctx := rm.ctx
	rm.mu.Unlock()

	if !stopped && ctx.Err() == nil {
		if err := req.Retry(); err != nil {
			slog.Debug("retry request failed", slog.String("url", key), slog.Any("error", err))
		}
	}

	rm.mu.Lock()
	if p, ok := rm.timers[key]; ok && p.attempt == attempt {
		delete(rm.timers, key)
	}
	rm.doneLocked()
	rm.mu.Unlock()
}

func (rm *retryManager) doneLocked() {
	rm.outstanding--
	if rm.outstanding == 0 {
		rm.idle.Broadcast()
	}
}

// Drain blocks until no retry is waiting on its timer. It reports whether
// any retry was scheduled since the previous call, in which case the
// collector has new requests to wait for.
func (rm *retryManager) Drain() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	waited := rm.outstanding > 0
	for rm.outstanding > 0 {
		rm.idle.Wait()
	}
	scheduled := rm.totalRetries != rm.drained
	rm.drained = rm.totalRetries
	return waited || scheduled
}

// Stop cancels every pending retry and rejects new ones.
func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for key := range rm.timers {
		rm.stopTimerLocked(key)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
