// Package api is a typed client for the book marketplace REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-bookshop-client/config"
	"github.com/aluiziolira/go-bookshop-client/models"
)

const (
	endpointListBooks     = "list_books"
	endpointGetBook       = "get_book"
	endpointCreateListing = "create_listing"
	endpointListReviews   = "list_reviews"
	endpointCreateReview  = "create_review"
	endpointCreateTx      = "create_transaction"

	maxErrorBody = 64 << 10
)

// Client issues requests against the marketplace API. Requests are never
// retried: a failure is terminal for that call.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	Metrics    *Metrics
}

// NewClient builds a client from cfg. metrics may be nil.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api url must include a host")
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		Metrics:   metrics,
	}, nil
}

// WithTransport replaces the HTTP transport, mainly for tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// ListBooks fetches every book on the marketplace.
func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.do(ctx, endpointListBooks, http.MethodGet, "/api/books", nil, nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBook fetches a single book.
func (c *Client) GetBook(ctx context.Context, id int) (models.Book, error) {
	var book models.Book
	err := c.do(ctx, endpointGetBook, http.MethodGet, "/api/books/"+strconv.Itoa(id), nil, nil, &book)
	return book, err
}

// CreateListing offers a new book for sale.
func (c *Client) CreateListing(ctx context.Context, l NewListing) (models.Book, error) {
	var book models.Book
	err := c.do(ctx, endpointCreateListing, http.MethodPost, "/api/books", nil, l, &book)
	return book, err
}

// ListReviews fetches the reviews of a book in server order.
func (c *Client) ListReviews(ctx context.Context, bookID int) ([]models.Review, error) {
	query := url.Values{"book_id": []string{strconv.Itoa(bookID)}}
	var reviews []models.Review
	if err := c.do(ctx, endpointListReviews, http.MethodGet, "/api/reviews", query, nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// CreateReview submits a review. Any non-success status is reported as
// "Failed to submit review".
func (c *Client) CreateReview(ctx context.Context, r models.NewReview) (models.Review, error) {
	var saved models.Review
	err := c.do(ctx, endpointCreateReview, http.MethodPost, "/api/reviews", nil, r, &saved)
	var status *StatusError
	if errors.As(err, &status) {
		status.Message = "Failed to submit review"
	}
	return saved, err
}

// CreateTransaction buys or rents a book for the session user.
func (c *Client) CreateTransaction(ctx context.Context, t models.TransactionRequest) (models.Transaction, error) {
	var tx models.Transaction
	err := c.do(ctx, endpointCreateTx, http.MethodPost, "/api/transactions", nil, t, &tx)
	return tx, err
}

// NewListing is the body of a book creation.
type NewListing struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Price       float64 `json:"price"`
	Condition   string  `json:"condition"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, target any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(endpoint, Classify(err, 0))
		}
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.Metrics.ObserveDuration(endpoint, time.Since(start))
	if err != nil {
		return c.fail(endpoint, Classify(err, 0))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := decodeStatusError(resp)
		slog.Debug("api request failed",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("request_id", requestID),
		)
		return c.fail(endpoint, Classify(statusErr, resp.StatusCode))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return c.fail(endpoint, fmt.Errorf("decode %s response: %w", endpoint, err))
		}
	}
	c.Metrics.IncRequest(endpoint, "success")
	return nil
}

func (c *Client) fail(endpoint string, err error) error {
	c.Metrics.IncRequest(endpoint, "error")
	c.Metrics.IncError(ErrorLabel(err))
	return err
}

func decodeStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return statusErr
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		statusErr.Code = body.Error
		statusErr.Message = body.Message
		return statusErr
	}

	// Flask-RESTful can answer with a bare JSON string.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		statusErr.Message = strings.TrimSpace(text)
	}
	return statusErr
}
