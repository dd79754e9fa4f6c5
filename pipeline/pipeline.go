// Package pipeline validates, de-duplicates and batches imported listings
// before handing them to an OutputWriter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-bookshop-client/config"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers do not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for pending batches.
var drainTimeout = 30 * time.Second

const defaultDedupeSize = 10000

// OutputWriter defines the interface for listing output.
type OutputWriter interface {
	Write(listings []*models.Listing) error
	Close() error
	Validate() error
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Processed int64
	Rejected  map[string]int
}

// Pipeline coordinates validation, de-duplication, and output writing.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	listingCh chan *models.Listing
	batchSize int

	defaultCondition string
	defaultAuthor    string

	wg   sync.WaitGroup
	seen *lru.Cache[string, struct{}]

	stats stats

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg. Cancelling ctx stops
// accepting new listings; already queued listings are still written.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	bufferSize := cfg.PipelineBufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = defaultDedupeSize
	}
	// lru.New only fails for non-positive sizes.
	seen, _ := lru.New[string, struct{}](dedupeSize)

	return &Pipeline{
		ctx:              ctx,
		writer:           writer,
		listingCh:        make(chan *models.Listing, bufferSize),
		batchSize:        batchSize,
		defaultCondition: cfg.DefaultCondition,
		defaultAuthor:    cfg.DefaultAuthor,
		seen:             seen,
		stats:            newStats(),
		shutdown:         make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues listings for downstream processing.
func (p *Pipeline) Process(listings ...*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, listing := range listings {
		if listing == nil {
			continue
		}
		if err := p.enqueue(listing); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting listings and waits up to drainTimeout for the
// workers to flush what is queued.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.listingCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return p.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats returns a snapshot of the internal counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s := p.Stats()
				slog.Info("pipeline progress",
					slog.Int64("processed", s.Processed),
					slog.Any("rejected", s.Rejected),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Listing, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for listing := range p.listingCh {
		prepared := p.prepare(listing)
		if prepared == nil {
			continue
		}
		batch = append(batch, prepared)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) prepare(listing *models.Listing) *models.Listing {
	if err := parser.ValidateListing(listing); err != nil {
		p.stats.reject("invalid_record")
		slog.Debug("listing rejected", slog.Any("error", err))
		return nil
	}

	if found, _ := p.seen.ContainsOrAdd(listing.SourceURL, struct{}{}); found {
		p.stats.reject("duplicate_url")
		return nil
	}

	listing.Title = strings.TrimSpace(listing.Title)
	listing.Price = parser.NormalizePrice(listing.Price)
	if _, err := parser.ParsePrice(listing.Price); err != nil {
		p.stats.reject("invalid_price")
		return nil
	}
	listing.Condition = parser.NormalizeCondition(listing.Condition, p.defaultCondition)
	if strings.TrimSpace(listing.Author) == "" {
		listing.Author = p.defaultAuthor
	}
	if listing.ImportedAt.IsZero() {
		listing.ImportedAt = time.Now()
	}

	p.stats.incrementProcessed()
	return listing
}

func (p *Pipeline) enqueue(listing *models.Listing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return fmt.Errorf("%w: %w", ErrPipelineClosed, context.Cause(p.ctx))
	case p.listingCh <- listing:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.listingCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type stats struct {
	mu        sync.Mutex
	processed int64
	rejected  map[string]int
}

func newStats() stats {
	return stats{rejected: make(map[string]int)}
}

func (s *stats) incrementProcessed() {
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
}

func (s *stats) reject(kind string) {
	s.mu.Lock()
	s.rejected[kind]++
	s.mu.Unlock()
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	rejected := make(map[string]int, len(s.rejected))
	for k, v := range s.rejected {
		rejected[k] = v
	}
	return Stats{Processed: s.processed, Rejected: rejected}
}
