package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/parser"
)

// ListingCreator creates a book on the marketplace.
type ListingCreator interface {
	CreateListing(ctx context.Context, l api.NewListing) (models.Book, error)
}

// APIWriter posts each listing to the marketplace. A listing the server
// rejects is logged and skipped; transport and authentication failures
// stop the writer.
type APIWriter struct {
	ctx    context.Context
	client ListingCreator

	mu      sync.Mutex
	created int
	skipped int
}

// NewAPIWriter builds an APIWriter bound to ctx.
func NewAPIWriter(ctx context.Context, client ListingCreator) *APIWriter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &APIWriter{ctx: ctx, client: client}
}

// Write creates every listing in the batch.
func (aw *APIWriter) Write(listings []*models.Listing) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	for _, l := range listings {
		price, err := parser.ParsePrice(l.Price)
		if err != nil {
			aw.skipped++
			slog.Warn("listing skipped", slog.String("title", l.Title), slog.Any("error", err))
			continue
		}

		book, err := aw.client.CreateListing(aw.ctx, api.NewListing{
			Title:       l.Title,
			Author:      l.Author,
			Price:       price,
			Condition:   l.Condition,
			Description: l.Description,
			ImageURL:    l.ImageURL,
		})
		if err != nil {
			if fatalCreateError(err) {
				return fmt.Errorf("create listing %q: %w", l.Title, err)
			}
			aw.skipped++
			slog.Warn("listing rejected by server",
				slog.String("title", l.Title),
				slog.String("category", api.ErrorLabel(err)),
				slog.Any("error", err),
			)
			continue
		}
		aw.created++
		slog.Debug("listing created", slog.Int("id", book.ID), slog.String("title", book.Title))
	}
	return nil
}

// Close is a no-op; the client owns no per-writer resources.
func (aw *APIWriter) Close() error {
	return nil
}

// Validate fails when no listing made it to the server.
func (aw *APIWriter) Validate() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if aw.created == 0 {
		return fmt.Errorf("no listings created (%d skipped)", aw.skipped)
	}
	return nil
}

// Created returns how many listings the server accepted.
func (aw *APIWriter) Created() int {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.created
}

// Skipped returns how many listings were rejected or unparseable.
func (aw *APIWriter) Skipped() int {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.skipped
}

func fatalCreateError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch api.ErrorLabel(err) {
	case "timeout", "connection", "unauthorized", "forbidden", "rate_limited":
		return true
	}
	return false
}
