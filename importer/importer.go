// Package importer crawls a public book catalog and feeds the listings it
// finds into a pipeline, which can publish them to the marketplace.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/config"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/pipeline"
)

// Importer wraps the colly collector and retry logic for a catalog site.
type Importer struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// New builds an importer configured from cfg. metrics may be nil.
func New(cfg *config.Config, metrics *Metrics) (*Importer, error) {
	parsed, err := url.Parse(cfg.ImportURL)
	if err != nil {
		return nil, fmt.Errorf("parse import url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("import url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Hostname(), parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	im := &Importer{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      metrics,
	}
	im.retry = newRetryManager(cfg, metrics)
	return im, nil
}

// WithTransport replaces the collector's HTTP transport.
func (im *Importer) WithTransport(rt http.RoundTripper) {
	im.collector.WithTransport(rt)
}

// Run crawls from the configured import URL and streams listings through p.
// It returns once every page, including retries, has been handled.
func (im *Importer) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ImportResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	im.retry.SetContext(ctx)
	im.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			im.retry.Stop()
		case <-done:
		}
	}()

	if err := im.collector.Visit(im.cfg.ImportURL); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}

	for {
		im.collector.Wait()
		if !im.retry.Drain() {
			break
		}
	}
	im.retry.Stop()

	return &models.ImportResult{
		StartTime:    start,
		EndTime:      time.Now(),
		TotalCount:   int(p.Stats().Processed),
		ErrorCount:   int(atomic.LoadInt64(&im.errorCount)),
		FailedURLs:   im.snapshotFailedURLs(),
		ErrorsByType: im.snapshotErrors(),
		RetryCount:   im.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&im.requestCount)),
		PageCount:    int(atomic.LoadInt64(&im.pageCount)),
	}, nil
}

func (im *Importer) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	im.handlersOnce.Do(func() {
		im.collector.OnRequest(func(r *colly.Request) {
			if ctx.Err() != nil {
				r.Abort()
				return
			}
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&im.requestCount, 1)
			im.Metrics.IncRequest("started")
			if current%50 == 0 {
				slog.Debug("import request progress",
					slog.Int64("requests", current),
					slog.Int64("pages", atomic.LoadInt64(&im.pageCount)),
					slog.String("url", r.URL.String()),
				)
			}
		})

		im.collector.OnResponse(func(r *colly.Response) {
			atomic.AddInt64(&im.pageCount, 1)
			im.Metrics.IncRequest("completed")
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				im.Metrics.ObserveDuration(time.Since(start))
			}
		})

		im.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&im.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			category := api.ErrorLabel(api.Classify(err, statusCode))

			im.mu.Lock()
			im.errorsByType[category]++
			im.mu.Unlock()

			var req *colly.Request
			target := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				req = r.Request
				target = req.URL.String()
			}
			slog.Error("catalog request error",
				slog.String("url", target),
				slog.String("category", category),
				slog.Int("status", statusCode),
				slog.Any("error", err),
			)
			im.Metrics.IncError(category)

			if !im.retry.Schedule(req) {
				im.mu.Lock()
				im.failedURLs = append(im.failedURLs, target)
				im.mu.Unlock()
			}
		})

		im.collector.OnHTML("article.product_pod", func(e *colly.HTMLElement) {
			listing := extractListing(e)
			if listing == nil {
				return
			}
			im.Metrics.IncListings()
			if err := p.Process(listing); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		})

		im.collector.OnHTML("li.next a", func(e *colly.HTMLElement) {
			if atomic.LoadInt64(&im.pageCount) >= int64(im.cfg.MaxPages) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if err := im.collector.Visit(next); err != nil && !errors.Is(err, colly.ErrAlreadyVisited) {
				slog.Debug("next page visit failed", slog.String("url", next), slog.Any("error", err))
			}
		})
	})
}

// extractListing reads one catalog entry. Author and description are
// optional on catalog pages; the pipeline fills in defaults.
func extractListing(e *colly.HTMLElement) *models.Listing {
	title := strings.TrimSpace(e.ChildAttr("h3 a", "title"))
	if title == "" {
		title = strings.TrimSpace(e.ChildText("h3 a"))
	}
	if title == "" {
		return nil
	}

	href := e.ChildAttr("h3 a", "href")
	if href == "" {
		return nil
	}

	listing := &models.Listing{
		Title:       title,
		Author:      strings.TrimSpace(e.ChildText(".author")),
		Price:       strings.TrimSpace(e.ChildText("p.price_color")),
		Condition:   strings.TrimSpace(e.ChildText(".condition")),
		Description: strings.TrimSpace(e.ChildText(".description")),
		SourceURL:   e.Request.AbsoluteURL(href),
		ImportedAt:  time.Now(),
	}
	if src := e.ChildAttr("img", "src"); src != "" {
		listing.ImageURL = e.Request.AbsoluteURL(src)
	}
	return listing
}

func (im *Importer) snapshotFailedURLs() []string {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := make([]string, len(im.failedURLs))
	copy(out, im.failedURLs)
	return out
}

func (im *Importer) snapshotErrors() map[string]int {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := make(map[string]int, len(im.errorsByType))
	for k, v := range im.errorsByType {
		out[k] = v
	}
	return out
}
