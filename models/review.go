package models

import "time"

// ReviewUser is the author summary embedded in a review.
type ReviewUser struct {
	Username string `json:"username"`
}

// Review is a persisted review of a book.
type Review struct {
	ID      int         `json:"id,omitempty"`
	Rating  int         `json:"rating"`
	Comment string      `json:"comment"`
	UserID  int         `json:"user_id,omitempty"`
	BookID  int         `json:"book_id"`
	Date    *time.Time  `json:"date,omitempty"`
	User    *ReviewUser `json:"user,omitempty"`
}

// NewReview is the body of a review submission.
type NewReview struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	UserID  int    `json:"user_id"`
	BookID  int    `json:"book_id"`
}

// User is the authenticated marketplace user.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
