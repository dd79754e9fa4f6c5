package render

import (
	"fmt"
	"io"

	"github.com/aluiziolira/go-bookshop-client/bookview"
)

// Text writes a terminal rendition of the book detail screen.
func Text(w io.Writer, v bookview.View) error {
	ew := &errWriter{w: w}
	switch v.Section {
	case bookview.SectionIdle:
		return nil
	case bookview.SectionLoading:
		ew.printf("Loading....\n")
		return ew.err
	case bookview.SectionError:
		ew.printf("Error: %s\n", v.Error)
		return ew.err
	}

	b := v.Book
	separator := "--------------------------------------------------"
	ew.printf("%s\n%s\n%s\n", separator, b.Title, separator)
	if b.Description != "" {
		ew.printf("%s\n\n", b.Description)
	}
	ew.printf("  Author:     %s\n", b.Author)
	ew.printf("  Status:     %s\n", b.Status)
	ew.printf("  Price:      $%s\n", formatPrice(b.Price))
	ew.printf("  Condition:  %s\n", b.Condition)

	if v.ShowPurchase {
		state := "available"
		if v.PurchaseDisabled {
			state = "pending"
		}
		ew.printf("\n  [Buy] [Rent]  (%s)\n", state)
	}
	if v.ShowRentedNotice {
		ew.printf("\n  %s\n", RentedNotice)
	}

	ew.printf("\nReviews\n")
	for _, r := range v.Reviews {
		if r.Placeholder {
			ew.printf("  %s\n", r.Text)
			continue
		}
		ew.printf("  Reviewed by: %s (%s)\n", r.Author, r.Date)
		ew.printf("    Rating: %d/5\n", r.Rating)
		ew.printf("    Comment: %s\n", r.Comment)
	}
	return ew.err
}

// Summary is a one-line description of a view, used in logs.
func Summary(v bookview.View) string {
	switch v.Section {
	case bookview.SectionContent:
		return fmt.Sprintf("%q (%s)", v.Book.Title, v.Book.Status)
	case bookview.SectionError:
		return "error: " + v.Error
	default:
		return v.Section.String()
	}
}

// errWriter stops writing after the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
