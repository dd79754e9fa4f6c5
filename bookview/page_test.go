package bookview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/parser"
)

type fakeAPI struct {
	mu sync.Mutex

	books     map[int]models.Book
	bookErr   error
	bookGates map[int]chan struct{}

	reviews         map[int][]models.Review
	reviewsErr      error
	reviewsGate     chan struct{}
	createReviewErr error
	createdReviews  []models.NewReview

	txErr   error
	txGate  chan struct{}
	txStart chan struct{}
	txCalls []models.TransactionRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		books:     make(map[int]models.Book),
		bookGates: make(map[int]chan struct{}),
		reviews:   make(map[int][]models.Review),
	}
}

func (f *fakeAPI) GetBook(ctx context.Context, id int) (models.Book, error) {
	f.mu.Lock()
	gate := f.bookGates[id]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Book{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return models.Book{}, f.bookErr
	}
	book, ok := f.books[id]
	if !ok {
		return models.Book{}, api.ErrNotFound{Err: &api.StatusError{StatusCode: 404, Message: "Book not found"}}
	}
	return book, nil
}

func (f *fakeAPI) ListReviews(ctx context.Context, bookID int) ([]models.Review, error) {
	f.mu.Lock()
	gate := f.reviewsGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reviewsErr != nil {
		return nil, f.reviewsErr
	}
	return append([]models.Review(nil), f.reviews[bookID]...), nil
}

func (f *fakeAPI) CreateReview(_ context.Context, r models.NewReview) (models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdReviews = append(f.createdReviews, r)
	if f.createReviewErr != nil {
		return models.Review{}, f.createReviewErr
	}
	now := time.Date(2024, 10, 24, 12, 0, 0, 0, time.UTC)
	return models.Review{
		ID:      len(f.createdReviews) + 100,
		Rating:  r.Rating,
		Comment: r.Comment,
		UserID:  r.UserID,
		BookID:  r.BookID,
		Date:    &now,
	}, nil
}

func (f *fakeAPI) CreateTransaction(ctx context.Context, t models.TransactionRequest) (models.Transaction, error) {
	f.mu.Lock()
	f.txCalls = append(f.txCalls, t)
	gate, start, txErr := f.txGate, f.txStart, f.txErr
	f.mu.Unlock()

	if start != nil {
		close(start)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Transaction{}, ctx.Err()
		}
	}
	if txErr != nil {
		return models.Transaction{}, txErr
	}
	return models.Transaction{ID: 1, TransactionType: t.TransactionType, BookID: t.BookID, UserID: 7}, nil
}

func (f *fakeAPI) transactionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txCalls)
}

func (f *fakeAPI) transactionBookIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.txCalls))
	for _, tx := range f.txCalls {
		ids = append(ids, tx.BookID)
	}
	return ids
}

func (f *fakeAPI) reviewCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createdReviews)
}

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *fakeNotifier) Success(msg string) {
	n.mu.Lock()
	n.successes = append(n.successes, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *fakeNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

type harness struct {
	api      *fakeAPI
	notifier *fakeNotifier
	nav      *RecordingNavigator
	page     *Page
}

func newHarness(t *testing.T, user *models.User) *harness {
	t.Helper()
	h := &harness{
		api:      newFakeAPI(),
		notifier: &fakeNotifier{},
		nav:      &RecordingNavigator{},
	}
	h.page = NewPage(Deps{
		Books:        h.api,
		Reviews:      h.api,
		Transactions: h.api,
		Session:      StaticSession{User: user},
		Navigator:    h.nav,
		Notifier:     h.notifier,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location:     time.UTC,
	})
	t.Cleanup(h.page.Unmount)
	return h
}

var testUser = &models.User{ID: 7, Username: "ada"}

func TestMountAvailableBookShowsPurchaseControls(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Title: "Dune", Status: models.StatusAvailable}

	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	v := h.page.View()
	require.Equal(t, SectionContent, v.Section)
	require.Equal(t, "Dune", v.Book.Title)
	require.True(t, v.ShowPurchase)
	require.False(t, v.PurchaseDisabled)
	require.False(t, v.ShowRentedNotice)
	require.True(t, v.ShowReviewForm)
}

func TestMountRentedBookShowsNotice(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Title: "Dune", Status: models.StatusRented}

	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	v := h.page.View()
	require.Equal(t, SectionContent, v.Section)
	require.False(t, v.ShowPurchase)
	require.True(t, v.ShowRentedNotice)
}

func TestEmptyReviewsRenderPlaceholder(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.reviews[42] = []models.Review{}

	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	v := h.page.View()
	require.Len(t, v.Reviews, 1)
	require.True(t, v.Reviews[0].Placeholder)
	require.Equal(t, "No reviews yet", v.Reviews[0].Text)
	require.False(t, v.ShowReviewForm, "anonymous users must not see the review form")
}

func TestReviewsAreListedInServerOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.reviews[42] = []models.Review{
		{ID: 1, Rating: 5, Comment: "first", UserID: 3},
		{ID: 2, Rating: 3, Comment: "second", User: &models.ReviewUser{Username: "bob"}},
	}

	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	v := h.page.View()
	require.Len(t, v.Reviews, 2)
	require.Equal(t, "first", v.Reviews[0].Comment)
	require.Equal(t, "User 3", v.Reviews[0].Author)
	require.Equal(t, "No date available", v.Reviews[0].Date)
	require.Equal(t, "bob", v.Reviews[1].Author)
}

func TestMountShowsLoadingWhileBookInFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	gate := make(chan struct{})
	h.api.bookGates[42] = gate

	h.page.Mount(context.Background(), "42")
	require.Eventually(t, func() bool {
		return h.page.View().Section == SectionLoading
	}, time.Second, time.Millisecond)

	close(gate)
	h.page.Wait()
	require.Equal(t, SectionContent, h.page.View().Section)
}

func TestMountBookErrorShowsMessage(t *testing.T) {
	h := newHarness(t, nil)

	h.page.Mount(context.Background(), "99")
	h.page.Wait()

	v := h.page.View()
	require.Equal(t, SectionError, v.Section)
	require.Equal(t, "Book not found", v.Error)
	require.False(t, v.ShowPurchase)
}

func TestMountInvalidID(t *testing.T) {
	h := newHarness(t, nil)

	h.page.Mount(context.Background(), "abc")
	h.page.Wait()

	v := h.page.View()
	require.Equal(t, SectionError, v.Section)
	require.Contains(t, v.Error, "invalid book id")
}

func TestReviewsLoadFailureToasts(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.reviewsErr = errors.New("boom")

	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	require.Equal(t, []string{"Failed to fetch reviews"}, h.notifier.Errors())
	require.Equal(t, SectionContent, h.page.View().Section)
}

func TestRemountDropsStaleBook(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[1] = models.Book{ID: 1, Title: "Old", Status: models.StatusAvailable}
	h.api.books[2] = models.Book{ID: 2, Title: "New", Status: models.StatusAvailable}
	gate := make(chan struct{})
	h.api.bookGates[1] = gate

	h.page.Mount(context.Background(), "1")
	h.page.Mount(context.Background(), "2")
	close(gate)
	h.page.Wait()

	v := h.page.View()
	require.Equal(t, SectionContent, v.Section)
	require.Equal(t, "New", v.Book.Title)
}

func TestUnauthenticatedBuyRedirectsToLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	err := h.page.Buy(context.Background())
	require.ErrorIs(t, err, ErrLoginRequired)
	require.Equal(t, "/login", h.nav.Last())
	require.Zero(t, h.api.transactionCalls())
}

func TestBuyUpdatesStatusOptimistically(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	require.NoError(t, h.page.Buy(context.Background()))

	v := h.page.View()
	require.Equal(t, models.StatusBought, v.Book.Status)
	require.False(t, v.ShowPurchase)
	require.False(t, v.ShowRentedNotice)
	require.NotNil(t, v.LastTransaction)
	require.Equal(t, []string{"Book purchased successfully"}, h.notifier.Successes())
	require.Equal(t, []models.TransactionRequest{{TransactionType: models.TransactionBuy, BookID: 42}}, h.api.txCalls)
}

func TestRentShowsRentedNotice(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	require.NoError(t, h.page.Rent(context.Background()))

	v := h.page.View()
	require.Equal(t, models.StatusRented, v.Book.Status)
	require.True(t, v.ShowRentedNotice)
	require.Equal(t, []string{"Book rented successfully"}, h.notifier.Successes())
}

func TestTransactionFailureIsReportedAndStatusKept(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.txErr = &api.StatusError{StatusCode: 400, Message: "Book is not available"}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	err := h.page.Buy(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"Book is not available"}, h.notifier.Errors())
	require.Empty(t, h.notifier.Successes())

	v := h.page.View()
	require.Equal(t, models.StatusAvailable, v.Book.Status)
	require.True(t, v.ShowPurchase)
	require.False(t, v.PurchaseDisabled)
}

func TestTransactionInFlightDisablesPurchase(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.txGate = make(chan struct{})
	h.api.txStart = make(chan struct{})
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.page.Buy(context.Background())
	}()
	<-h.api.txStart

	require.True(t, h.page.View().PurchaseDisabled)
	require.ErrorIs(t, h.page.Rent(context.Background()), ErrTransactionInFlight)

	close(h.api.txGate)
	require.NoError(t, <-errCh)
	require.Equal(t, 1, h.api.transactionCalls())
	require.False(t, h.page.View().PurchaseDisabled)
}

func TestBuyRejectedWhenNotAvailable(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusRented}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	require.ErrorIs(t, h.page.Buy(context.Background()), models.ErrInvalidTransition)
	require.Zero(t, h.api.transactionCalls())
}

func TestBuyBeforeLoad(t *testing.T) {
	h := newHarness(t, testUser)
	require.ErrorIs(t, h.page.Buy(context.Background()), ErrBookNotLoaded)
}

func TestSubmitReviewAppendsAndResetsForm(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.reviews[42] = []models.Review{{ID: 1, Rating: 5, Comment: "first", UserID: 3}}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	before := h.page.View().Reviews
	h.page.SetRating(4)
	h.page.SetComment("Great")
	require.NoError(t, h.page.SubmitReview(context.Background()))

	v := h.page.View()
	require.Len(t, v.Reviews, len(before)+1)
	last := v.Reviews[len(v.Reviews)-1]
	require.Equal(t, 4, last.Rating)
	require.Equal(t, "Great", last.Comment)
	require.Equal(t, "User 7", last.Author)
	require.Equal(t, parser.DefaultRating, v.Form.Rating)
	require.Empty(t, v.Form.Comment)
	require.Equal(t, []string{"Review submitted successfully"}, h.notifier.Successes())
	require.Equal(t, []models.NewReview{{Rating: 4, Comment: "Great", UserID: 7, BookID: 42}}, h.api.createdReviews)
}

func TestSubmitReviewValidationSkipsNetwork(t *testing.T) {
	tests := []struct {
		name    string
		rating  string
		comment string
	}{
		{name: "empty comment", rating: "4", comment: ""},
		{name: "missing rating", rating: "", comment: "Great"},
		{name: "out of range rating", rating: "9", comment: "Great"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testUser)
			h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
			h.page.Mount(context.Background(), "42")
			h.page.Wait()

			h.page.SetRatingText(tt.rating)
			h.page.SetComment(tt.comment)
			require.Error(t, h.page.SubmitReview(context.Background()))
			require.Zero(t, h.api.reviewCalls())
			require.Empty(t, h.notifier.Errors())
		})
	}
}

func TestSubmitReviewFailureKeepsForm(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.createReviewErr = &api.StatusError{StatusCode: 500, Message: "Failed to submit review"}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	h.page.SetRating(2)
	h.page.SetComment("Meh")
	require.Error(t, h.page.SubmitReview(context.Background()))

	v := h.page.View()
	require.Len(t, v.Reviews, 1)
	require.True(t, v.Reviews[0].Placeholder)
	require.Equal(t, 2, v.Form.Rating)
	require.Equal(t, "Meh", v.Form.Comment)
	require.Equal(t, []string{"Failed to submit review"}, h.notifier.Errors())
}

func TestUnauthenticatedReviewRedirects(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.page.Mount(context.Background(), "42")
	h.page.Wait()

	h.page.SetComment("Great")
	require.ErrorIs(t, h.page.SubmitReview(context.Background()), ErrLoginRequired)
	require.Equal(t, LoginPath, h.nav.Last())
	require.Zero(t, h.api.reviewCalls())
}

func TestUnmountDropsInFlightLoad(t *testing.T) {
	h := newHarness(t, nil)
	h.api.books[42] = models.Book{ID: 42, Status: models.StatusAvailable}
	h.api.bookGates[42] = make(chan struct{})
	h.api.reviewsGate = make(chan struct{})

	for i := 0; i < 200; i++ {
		h.page.Mount(context.Background(), "42")
		h.page.Unmount()
		h.page.Wait()

		v := h.page.View()
		require.Equal(t, SectionIdle, v.Section, "iteration %d", i)
		require.Empty(t, v.Error)
	}
	require.Empty(t, h.notifier.Errors(), "dropped loads must not toast")
}

func TestRemountShowsLatestBook(t *testing.T) {
	h := newHarness(t, testUser)
	h.api.books[1] = models.Book{ID: 1, Title: "Emma", Status: models.StatusAvailable}
	h.api.books[2] = models.Book{ID: 2, Title: "Dune", Status: models.StatusAvailable}
	h.api.reviews[1] = []models.Review{{ID: 10, Rating: 1, Comment: "Emma review", BookID: 1}}
	h.api.reviews[2] = []models.Review{{ID: 20, Rating: 5, Comment: "Dune review", BookID: 2}}

	for i := 0; i < 200; i++ {
		h.page.Mount(context.Background(), "1")
		h.page.Mount(context.Background(), "2")
		h.page.Wait()

		v := h.page.View()
		require.Equal(t, SectionContent, v.Section, "iteration %d", i)
		require.Equal(t, 2, v.Book.ID, "iteration %d", i)
		require.Len(t, v.Reviews, 1)
		require.Equal(t, "Dune review", v.Reviews[0].Comment, "iteration %d", i)
		h.page.Unmount()
	}

	h.page.Mount(context.Background(), "1")
	h.page.Mount(context.Background(), "2")
	h.page.Wait()
	require.NoError(t, h.page.Buy(context.Background()))
	require.Equal(t, []int{2}, h.api.transactionBookIDs())
}
