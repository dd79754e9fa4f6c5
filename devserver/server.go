package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/bookview"
	"github.com/aluiziolira/go-bookshop-client/config"
	"github.com/aluiziolira/go-bookshop-client/render"
)

// Backend is what the server needs to render book pages.
type Backend interface {
	bookview.BookGetter
	bookview.ReviewStore
	bookview.TransactionCreator
}

// Server is the dev server.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
}

// New wires the proxy, the book page and the metrics endpoint.
// registry may be nil, in which case /metrics is not served.
func New(cfg *config.Config, backend Backend, registry *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	proxy, err := NewProxy(target, cfg.ProxyInsecure)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(APIPrefix+"/", proxy)
	mux.Handle(APIPrefix, proxy)
	mux.Handle("GET /books/{id}", bookPageHandler(backend, logger))
	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		addr:    cfg.ListenAddr,
		handler: accessLog(logger, mux),
		logger:  logger,
	}, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev server listening", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func bookPageHandler(backend Backend, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := bookview.NewPage(bookview.Deps{
			Books:        backend,
			Reviews:      backend,
			Transactions: backend,
			Session:      bookview.StaticSession{},
			Navigator:    &bookview.RecordingNavigator{},
			Notifier:     bookview.LogNotifier{Logger: logger},
			Logger:       logger,
		})
		defer page.Unmount()

		page.Mount(r.Context(), r.PathValue("id"))
		page.Wait()

		view := page.View()
		status := http.StatusOK
		if view.Section == bookview.SectionError {
			status = loadErrorStatus(page.LoadErr())
		}
		templ.Handler(render.BookPage(view),
			templ.WithStatus(status),
			templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
				logger.Error("render book page", slog.String("id", r.PathValue("id")), slog.Any("error", err))
				return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				})
			}),
		).ServeHTTP(w, r)
	})
}

// loadErrorStatus is 404 for a book that does not exist and 502 when the
// backend could not answer.
func loadErrorStatus(err error) int {
	if errors.Is(err, bookview.ErrInvalidBookID) || api.ErrorLabel(err) == "not_found" {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
