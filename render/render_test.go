package render

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aluiziolira/go-bookshop-client/bookview"
	"github.com/aluiziolira/go-bookshop-client/models"
)

func contentView(status models.BookStatus) bookview.View {
	v := bookview.View{
		Section: bookview.SectionContent,
		Book: models.Book{
			ID:        42,
			Title:     "Dune <1965>",
			Author:    "Frank Herbert",
			Price:     12.5,
			Condition: "used",
			Status:    status,
		},
		Reviews: []bookview.ReviewItem{{Placeholder: true, Text: bookview.NoReviewsText}},
		Form:    bookview.ReviewForm{Rating: 5},
	}
	v.ShowPurchase = status == models.StatusAvailable
	v.ShowRentedNotice = status == models.StatusRented
	return v
}

func renderHTML(t *testing.T, v bookview.View) string {
	t.Helper()
	var buf bytes.Buffer
	if err := BookPage(v).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestBookPageAvailable(t *testing.T) {
	got := renderHTML(t, contentView(models.StatusAvailable))

	for _, want := range []string{`id="buy"`, `id="rent"`, "Dune &lt;1965&gt;", "Price: $12.5", "No reviews yet"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, RentedNotice) {
		t.Fatalf("rented notice should be absent")
	}
	if strings.Contains(got, "Leave a Review") {
		t.Fatalf("review form should be hidden")
	}
}

func TestBookPageRented(t *testing.T) {
	got := renderHTML(t, contentView(models.StatusRented))

	if !strings.Contains(got, RentedNotice) {
		t.Fatalf("expected rented notice")
	}
	if strings.Contains(got, `id="buy"`) || strings.Contains(got, `id="rent"`) {
		t.Fatalf("purchase buttons should be absent")
	}
}

func TestBookPageDisabledButtonsAndForm(t *testing.T) {
	v := contentView(models.StatusAvailable)
	v.PurchaseDisabled = true
	v.ShowReviewForm = true
	v.Form = bookview.ReviewForm{Rating: 3, Comment: "so <so>"}

	got := renderHTML(t, v)
	if !strings.Contains(got, `data-transaction="buy" disabled`) {
		t.Fatalf("expected disabled buy button: %q", got)
	}
	if !strings.Contains(got, `<option value="3" selected>3</option>`) {
		t.Fatalf("expected rating 3 selected")
	}
	if !strings.Contains(got, "so &lt;so&gt;</textarea>") {
		t.Fatalf("expected escaped comment")
	}
}

func TestBookPageButtonsAreNotFormControls(t *testing.T) {
	got := renderHTML(t, contentView(models.StatusAvailable))
	if strings.Contains(got, "formaction") {
		t.Fatalf("purchase buttons should not carry formaction: %q", got)
	}
	if !strings.Contains(got, `<button id="buy" type="button"`) {
		t.Fatalf("expected a plain buy button: %q", got)
	}
}

func TestBookPageImageURL(t *testing.T) {
	v := contentView(models.StatusAvailable)
	v.Book.ImageURL = "https://covers.example.test/dune.jpg?size=l&v=2"
	got := renderHTML(t, v)
	if !strings.Contains(got, `<img src="https://covers.example.test/dune.jpg?size=l&amp;v=2"`) {
		t.Fatalf("expected escaped image url: %q", got)
	}

	v.Book.ImageURL = "javascript:alert(1)"
	got = renderHTML(t, v)
	if strings.Contains(got, "javascript:") {
		t.Fatalf("unsafe image url should be sanitized: %q", got)
	}
}

func TestBookPageSections(t *testing.T) {
	loading := renderHTML(t, bookview.View{Section: bookview.SectionLoading})
	if !strings.Contains(loading, "Loading....") {
		t.Fatalf("expected loading indicator")
	}
	failed := renderHTML(t, bookview.View{Section: bookview.SectionError, Error: "Book not found"})
	if !strings.Contains(failed, "Book not found") || strings.Contains(failed, "Loading") {
		t.Fatalf("unexpected error rendering: %q", failed)
	}
}

func TestTextReviews(t *testing.T) {
	v := contentView(models.StatusAvailable)
	v.Reviews = []bookview.ReviewItem{{Author: "ada", Date: "No date available", Rating: 4, Comment: "Great"}}

	var buf bytes.Buffer
	if err := Text(&buf, v); err != nil {
		t.Fatalf("text: %v", err)
	}
	got := buf.String()
	for _, want := range []string{"Reviewed by: ada (No date available)", "Rating: 4/5", "Comment: Great", "[Buy] [Rent]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(bookview.View{Section: bookview.SectionError, Error: "boom"}); got != "error: boom" {
		t.Fatalf("summary = %q", got)
	}
	if got := Summary(contentView(models.StatusRented)); got != `"Dune <1965>" (rented)` {
		t.Fatalf("summary = %q", got)
	}
}
