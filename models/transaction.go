package models

import (
	"errors"
	"fmt"
	"time"
)

// TransactionType is the kind of acquisition.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionRent TransactionType = "rent"
)

// ErrInvalidTransition is returned when a transaction cannot apply to a book's status.
var ErrInvalidTransition = errors.New("models: invalid status transition")

// TransactionRequest is the body of a transaction creation.
type TransactionRequest struct {
	TransactionType TransactionType `json:"transactionType"`
	BookID          int             `json:"bookId"`
}

// Transaction is the server record of a buy or rent.
type Transaction struct {
	ID              int             `json:"id,omitempty"`
	TransactionType TransactionType `json:"transactionType"`
	BookID          int             `json:"bookId"`
	UserID          int             `json:"userId,omitempty"`
	CreatedAt       *time.Time      `json:"createdAt,omitempty"`
}

// TargetStatus is the status a book reaches after a successful transaction.
func (t TransactionType) TargetStatus() (BookStatus, error) {
	switch t {
	case TransactionBuy:
		return StatusBought, nil
	case TransactionRent:
		return StatusRented, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", string(t))
	}
}

// ApplyTransaction returns book with its status moved forward by t.
// Only available books can change status: available→bought and
// available→rented. The input book is never modified.
func ApplyTransaction(book Book, t TransactionType) (Book, error) {
	target, err := t.TargetStatus()
	if err != nil {
		return book, err
	}
	if book.Status != StatusAvailable {
		return book, fmt.Errorf("%w: %s book cannot be %s", ErrInvalidTransition, book.Status, target)
	}
	book.Status = target
	return book, nil
}
