// Package bookview coordinates the book detail screen: loading the book and
// its reviews, buying or renting it, and submitting reviews.
//
// Each concern runs on its own async.Action so none of them blocks the others.
// Results are committed only while the screen still shows the book they were
// issued for; Unmount and a change of book id drop everything in flight.
package bookview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/async"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/parser"
)

// LoginPath is where unauthenticated interactions are sent.
const LoginPath = "/login"

var (
	// ErrLoginRequired is returned when an interaction needs a signed-in user.
	ErrLoginRequired = errors.New("bookview: login required")
	// ErrBookNotLoaded is returned when an interaction needs the book first.
	ErrBookNotLoaded = errors.New("bookview: book not loaded")
	// ErrTransactionInFlight is returned while a buy or rent is pending.
	ErrTransactionInFlight = errors.New("bookview: transaction in flight")
	// ErrInvalidBookID is reported by LoadErr when the route id is not a book id.
	ErrInvalidBookID = errors.New("bookview: invalid book id")
)

// Deps are the collaborators of a Page.
type Deps struct {
	Books        BookGetter
	Reviews      ReviewStore
	Transactions TransactionCreator
	Session      Session
	Navigator    Navigator
	Notifier     Notifier
	Logger       *slog.Logger

	// Message turns failures into user-facing text. Defaults to api.Message.
	Message func(error) string
	// Location is used for review dates. Defaults to time.Local.
	Location *time.Location
}

// Page is one instance of the book detail screen.
type Page struct {
	deps Deps

	book        *async.Action[int, models.Book]
	reviewsLoad *async.Action[int, []models.Review]
	transaction *async.Action[models.TransactionRequest, models.Transaction]
	submit      *async.Action[models.NewReview, models.Review]

	wg sync.WaitGroup

	mu      sync.Mutex
	mounted bool
	routeID string
	bookID  int
	idErr   string
	loadErr error
	cancel  context.CancelFunc
	reviews []models.Review
	rating  int
	comment string
	txBusy  bool
	lastTx  *models.Transaction
}

// NewPage builds a page. Books, Reviews, Transactions, Navigator and Notifier
// are required.
func NewPage(deps Deps) *Page {
	if deps.Message == nil {
		deps.Message = api.Message
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = StaticSession{}
	}
	withMessage := async.WithMessage(deps.Message)

	return &Page{
		deps:        deps,
		book:        async.New(deps.Books.GetBook, withMessage),
		reviewsLoad: async.New(deps.Reviews.ListReviews, withMessage),
		transaction: async.New(deps.Transactions.CreateTransaction, withMessage),
		submit:      async.New(deps.Reviews.CreateReview, withMessage),
		rating:      parser.DefaultRating,
	}
}

// Mount shows the book identified by routeID and starts loading it and its
// reviews. It returns immediately; use Wait to block until both loads settle.
// Mounting the id already shown is a no-op.
func (p *Page) Mount(ctx context.Context, routeID string) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.mounted && p.routeID == routeID {
		p.mu.Unlock()
		return
	}
	p.resetLocked()
	p.mounted = true
	p.routeID = routeID

	id, err := parser.ParseBookID(routeID)
	if err != nil {
		p.idErr = err.Error()
		p.loadErr = fmt.Errorf("%w: %v", ErrInvalidBookID, err)
		p.mu.Unlock()
		return
	}
	p.bookID = id
	loadCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	// Reserved under p.mu so a later Mount or Unmount supersedes them even
	// before the goroutines run.
	bookTicket := p.book.Begin()
	reviewsTicket := p.reviewsLoad.Begin()
	p.wg.Add(2)
	p.mu.Unlock()

	p.deps.Logger.Debug("mounting book view", slog.Int("book_id", id))
	go p.loadBook(loadCtx, bookTicket, id)
	go p.loadReviews(loadCtx, reviewsTicket, id)
}

// Unmount drops every result still in flight.
func (p *Page) Unmount() {
	p.mu.Lock()
	p.resetLocked()
	p.mounted = false
	p.mu.Unlock()
	p.transaction.Reset()
	p.submit.Reset()
}

// Wait blocks until the loads started by Mount have settled.
func (p *Page) Wait() {
	p.wg.Wait()
}

// resetLocked supersedes the loads before cancelling them, so a load failing
// on cancellation can never commit.
func (p *Page) resetLocked() {
	p.book.Reset()
	p.reviewsLoad.Reset()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.routeID = ""
	p.bookID = 0
	p.idErr = ""
	p.loadErr = nil
	p.reviews = nil
}

func (p *Page) loadBook(ctx context.Context, t async.Ticket, id int) {
	defer p.wg.Done()
	_, err := p.book.Run(ctx, t, id)
	if err == nil || errors.Is(err, async.ErrSuperseded) {
		return
	}
	p.deps.Logger.Debug("book load failed", slog.Int("book_id", id), slog.Any("error", err))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current(id) && p.book.Current(t) {
		p.loadErr = err
	}
}

// LoadErr returns why the book on screen failed to load, or nil.
func (p *Page) LoadErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

func (p *Page) loadReviews(ctx context.Context, t async.Ticket, id int) {
	defer p.wg.Done()
	reviews, err := p.reviewsLoad.Run(ctx, t, id)
	if errors.Is(err, async.ErrSuperseded) {
		return
	}
	if err != nil {
		p.deps.Logger.Debug("reviews load failed", slog.Int("book_id", id), slog.Any("error", err))
		p.deps.Notifier.Error("Failed to fetch reviews")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current(id) || !p.reviewsLoad.Current(t) {
		return
	}
	p.reviews = append([]models.Review(nil), reviews...)
}

// current reports whether id is still the book on screen. Callers hold p.mu.
func (p *Page) current(id int) bool {
	return p.mounted && p.bookID == id
}

// Buy purchases the book for the current user.
func (p *Page) Buy(ctx context.Context) error {
	return p.transact(ctx, models.TransactionBuy)
}

// Rent rents the book for the current user.
func (p *Page) Rent(ctx context.Context) error {
	return p.transact(ctx, models.TransactionRent)
}

func (p *Page) transact(ctx context.Context, t models.TransactionType) error {
	if p.deps.Session.CurrentUser() == nil {
		p.deps.Navigator.Navigate(LoginPath)
		return ErrLoginRequired
	}
	book, ok := p.book.Data()
	if !ok {
		return ErrBookNotLoaded
	}
	if _, err := models.ApplyTransaction(book, t); err != nil {
		return err
	}

	p.mu.Lock()
	if p.txBusy {
		p.mu.Unlock()
		return ErrTransactionInFlight
	}
	p.txBusy = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.txBusy = false
		p.mu.Unlock()
	}()

	tx, err := p.transaction.Invoke(ctx, models.TransactionRequest{
		TransactionType: t,
		BookID:          book.ID,
	})
	if errors.Is(err, async.ErrSuperseded) {
		return err
	}
	if err != nil {
		p.deps.Notifier.Error(p.deps.Message(err))
		return err
	}

	p.mu.Lock()
	p.lastTx = &tx
	current := p.current(book.ID)
	p.mu.Unlock()

	if t == models.TransactionBuy {
		p.deps.Notifier.Success("Book purchased successfully")
	} else {
		p.deps.Notifier.Success("Book rented successfully")
	}

	if current {
		p.book.Update(func(b models.Book) models.Book {
			if b.ID != book.ID {
				return b
			}
			next, err := models.ApplyTransaction(b, t)
			if err != nil {
				return b
			}
			return next
		})
	}
	return nil
}

// SetRating sets the rating field of the review form. 0 means no rating.
func (p *Page) SetRating(rating int) {
	p.mu.Lock()
	p.rating = rating
	p.mu.Unlock()
}

// SetRatingText sets the rating from its form value. An empty or non-numeric
// value leaves the field unset.
func (p *Page) SetRatingText(raw string) {
	rating, err := parser.ParseRating(raw)
	if err != nil {
		rating = 0
	}
	p.SetRating(rating)
}

// SetComment sets the comment field of the review form.
func (p *Page) SetComment(comment string) {
	p.mu.Lock()
	p.comment = comment
	p.mu.Unlock()
}

// SubmitReview posts the review form. Invalid input is rejected before any
// request is made. On success the saved review is appended to the list and
// the form goes back to its defaults.
func (p *Page) SubmitReview(ctx context.Context) error {
	user := p.deps.Session.CurrentUser()
	if user == nil {
		p.deps.Navigator.Navigate(LoginPath)
		return ErrLoginRequired
	}
	if _, ok := p.book.Data(); !ok {
		return ErrBookNotLoaded
	}

	p.mu.Lock()
	draft := models.NewReview{
		Rating:  p.rating,
		Comment: p.comment,
		UserID:  user.ID,
		BookID:  p.bookID,
	}
	p.mu.Unlock()

	if err := parser.ValidateReviewForm(draft.Rating, draft.Comment); err != nil {
		return err
	}

	saved, err := p.submit.Invoke(ctx, draft)
	if errors.Is(err, async.ErrSuperseded) {
		return err
	}
	if err != nil {
		p.deps.Logger.Error("submit review failed",
			slog.Int("book_id", draft.BookID),
			slog.Int("user_id", draft.UserID),
			slog.Any("error", err),
		)
		p.deps.Notifier.Error(p.deps.Message(err))
		return err
	}

	p.mu.Lock()
	if p.current(draft.BookID) {
		p.reviews = append(p.reviews, saved)
		p.rating = parser.DefaultRating
		p.comment = ""
	}
	p.mu.Unlock()

	p.deps.Notifier.Success("Review submitted successfully")
	return nil
}
