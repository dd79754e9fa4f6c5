// Package render turns a bookview.View into HTML or plain text.
//
// The HTML components live in book.templ; run `templ generate` after editing
// it.
package render

import "strconv"

// RentedNotice is shown when a book is out on rent.
const RentedNotice = "Book is currently rented. Be on the lookout for when it is next available."

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func ratingLabel(rating int) string {
	return strconv.Itoa(rating) + "/5"
}
