// Package parser validates and normalizes user input and imported listings.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-bookshop-client/models"
)

const (
	MinRating     = 1
	MaxRating     = 5
	DefaultRating = 5
)

// ErrRequired marks a required form field that was left empty.
var ErrRequired = errors.New("required field missing")

// ValidateListing ensures the importer captured the required fields.
func ValidateListing(l *models.Listing) error {
	if l == nil {
		return fmt.Errorf("listing is nil")
	}
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("listing missing title")
	}
	if strings.TrimSpace(l.Price) == "" {
		return fmt.Errorf("listing missing price for %s", l.Title)
	}
	if strings.TrimSpace(l.SourceURL) == "" {
		return fmt.Errorf("listing missing source url for %s", l.Title)
	}
	return nil
}

// NormalizePrice removes currency symbols and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	for _, symbol := range []string{"Â£", "£", "$", "€"} {
		price = strings.ReplaceAll(price, symbol, "")
	}
	return strings.TrimSpace(price)
}

// ParsePrice converts a normalized or raw price string to a number.
func ParsePrice(price string) (float64, error) {
	v, err := strconv.ParseFloat(NormalizePrice(price), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", price, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("price %q cannot be negative", price)
	}
	return v, nil
}

// NormalizeCondition lowercases the condition text, falling back to def.
func NormalizeCondition(condition, def string) string {
	condition = strings.ToLower(strings.TrimSpace(condition))
	if condition == "" {
		return def
	}
	return condition
}

// ParseBookID converts a route identifier to a book id.
func ParseBookID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid book id %q", raw)
	}
	return id, nil
}

// ParseRating reads a rating as submitted by the rating select.
// An empty value reports ErrRequired.
func ParseRating(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("rating: %w", ErrRequired)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("rating %q is not a number", raw)
	}
	return v, nil
}

// ValidateReviewForm checks the review form fields before any request is made.
func ValidateReviewForm(rating int, comment string) error {
	if rating == 0 {
		return fmt.Errorf("rating: %w", ErrRequired)
	}
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
	}
	if strings.TrimSpace(comment) == "" {
		return fmt.Errorf("comment: %w", ErrRequired)
	}
	return nil
}

// ReviewerLabel names the author of a review for display.
func ReviewerLabel(r models.Review) string {
	if r.User != nil && r.User.Username != "" {
		return r.User.Username
	}
	if r.UserID != 0 {
		return "User " + strconv.Itoa(r.UserID)
	}
	return "User Anonymous"
}

// ReviewDateLabel formats the review date for display.
func ReviewDateLabel(r models.Review, loc *time.Location) string {
	if r.Date == nil || r.Date.IsZero() {
		return "No date available"
	}
	if loc == nil {
		loc = time.Local
	}
	return r.Date.In(loc).Format("1/2/2006, 3:04:05 PM")
}
