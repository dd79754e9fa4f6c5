// Package models defines the data structures exchanged with the marketplace API.
package models

import (
	"fmt"
	"time"
)

// BookStatus is the availability of a book on the marketplace.
type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusRented    BookStatus = "rented"
	StatusBought    BookStatus = "bought"
)

// ParseBookStatus converts the wire value to a BookStatus.
func ParseBookStatus(s string) (BookStatus, error) {
	switch BookStatus(s) {
	case StatusAvailable, StatusRented, StatusBought:
		return BookStatus(s), nil
	default:
		return "", fmt.Errorf("unknown book status %q", s)
	}
}

// Book is a marketplace book as returned by the API.
type Book struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Price       float64    `json:"price"`
	Condition   string     `json:"condition"`
	Status      BookStatus `json:"status"`
}

// Listing is a book offered for sale, created by the importer.
type Listing struct {
	Title       string    `csv:"title" json:"title"`
	Author      string    `csv:"author" json:"author"`
	Price       string    `csv:"price" json:"price"`
	Condition   string    `csv:"condition" json:"condition"`
	Description string    `csv:"description" json:"description,omitempty"`
	ImageURL    string    `csv:"image_url" json:"imageUrl,omitempty"`
	SourceURL   string    `csv:"source_url" json:"sourceUrl"`
	ImportedAt  time.Time `csv:"imported_at" json:"importedAt"`
}

// ImportResult holds the overall result of an import run.
type ImportResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}
