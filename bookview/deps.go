package bookview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-bookshop-client/models"
)

// BookGetter loads a book by id.
type BookGetter interface {
	GetBook(ctx context.Context, id int) (models.Book, error)
}

// ReviewStore loads and creates reviews.
type ReviewStore interface {
	ListReviews(ctx context.Context, bookID int) ([]models.Review, error)
	CreateReview(ctx context.Context, r models.NewReview) (models.Review, error)
}

// TransactionCreator buys or rents books.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, t models.TransactionRequest) (models.Transaction, error)
}

// Session exposes the authenticated user, or nil.
type Session interface {
	CurrentUser() *models.User
}

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(path string)
}

// Notifier shows transient notifications.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// StaticSession is a Session with a fixed user.
type StaticSession struct {
	User *models.User
}

// CurrentUser implements Session.
func (s StaticSession) CurrentUser() *models.User {
	return s.User
}

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Success implements Notifier.
func (n LogNotifier) Success(msg string) {
	n.logger().Info(msg, slog.String("toast", "success"))
}

// Error implements Notifier.
func (n LogNotifier) Error(msg string) {
	n.logger().Warn(msg, slog.String("toast", "error"))
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// RecordingNavigator remembers every navigation.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

// Navigate implements Navigator.
func (n *RecordingNavigator) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

// Last returns the most recent path, or "".
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}
