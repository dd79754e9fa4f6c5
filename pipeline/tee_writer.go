package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-bookshop-client/models"
)

// TeeWriter fans every batch out to several writers in order.
type TeeWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewTeeWriter returns a writer that forwards to all of writers.
func NewTeeWriter(writers ...OutputWriter) (*TeeWriter, error) {
	if len(writers) == 0 {
		return nil, fmt.Errorf("tee writer needs at least one writer")
	}
	for i, w := range writers {
		if w == nil {
			return nil, fmt.Errorf("tee writer %d is nil", i)
		}
	}
	return &TeeWriter{writers: writers}, nil
}

// Write stops at the first failing writer.
func (tw *TeeWriter) Write(listings []*models.Listing) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	for i, w := range tw.writers {
		if err := w.Write(listings); err != nil {
			return fmt.Errorf("tee writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer, even when one of them fails.
func (tw *TeeWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	var errs []error
	for i, w := range tw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tee writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer.
func (tw *TeeWriter) Validate() error {
	var errs []error
	for i, w := range tw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate tee writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
