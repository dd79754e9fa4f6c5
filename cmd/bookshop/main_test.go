package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-bookshop-client/config"
	"github.com/aluiziolira/go-bookshop-client/pipeline"
)

type fakeMarketplace struct {
	mu           sync.Mutex
	transactions []map[string]any
	reviews      []map[string]any
}

func (f *fakeMarketplace) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 42, "title": "Dune", "author": "Frank Herbert", "price": 12.5, "condition": "used", "status": "available"},
		})
	})
	mux.HandleFunc("GET /api/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "42" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found", "message": "Book not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 42, "title": "Dune", "author": "Frank Herbert", "price": 12.5, "condition": "used", "status": "available",
		})
	})
	mux.HandleFunc("GET /api/reviews", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{})
	})
	mux.HandleFunc("POST /api/reviews", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.reviews = append(f.reviews, body)
		f.mu.Unlock()
		body["id"] = 1
		writeJSON(w, http.StatusCreated, body)
	})
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.transactions = append(f.transactions, body)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": 9, "transactionType": body["transactionType"], "bookId": 42, "userId": 7})
	})
	return mux
}

func (f *fakeMarketplace) postedTransactions() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.transactions...)
}

func (f *fakeMarketplace) postedReviews() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.reviews...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func newMarketplace(t *testing.T) (*fakeMarketplace, string) {
	t.Helper()
	fake := &fakeMarketplace{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return fake, srv.URL
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI(t)
	require.Equal(t, exitError, code)
	require.Contains(t, stderr, "usage: bookshop")

	code, _, stderr = runCLI(t, "fly")
	require.Equal(t, exitError, code)
	require.Contains(t, stderr, `unknown command "fly"`)
}

func TestViewCommand(t *testing.T) {
	_, url := newMarketplace(t)

	code, stdout, _ := runCLI(t, "view", "-api-url", url, "-id", "42")
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "Dune")
	require.Contains(t, stdout, "No reviews yet")

	code, stdout, _ = runCLI(t, "view", "-api-url", url, "-id", "42", "-format", "html")
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, `id="buy"`)
}

func TestViewMissingBook(t *testing.T) {
	_, url := newMarketplace(t)

	code, stdout, stderr := runCLI(t, "view", "-api-url", url, "-id", "7")
	require.Equal(t, exitError, code)
	require.Contains(t, stdout, "Error: Book not found")
	require.Contains(t, stderr, "error: Book not found")
}

func TestBuyRequiresLogin(t *testing.T) {
	fake, url := newMarketplace(t)

	code, _, stderr := runCLI(t, "buy", "-api-url", url, "-id", "42")
	require.Equal(t, exitLoginRequired, code)
	require.Contains(t, stderr, "login required")
	require.Empty(t, fake.postedTransactions())
}

func TestBuyAndRent(t *testing.T) {
	fake, url := newMarketplace(t)

	code, stdout, _ := runCLI(t, "buy", "-api-url", url, "-id", "42", "-user", "7")
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, `"Dune" (bought)`)

	code, stdout, _ = runCLI(t, "rent", "-api-url", url, "-id", "42", "-user", "7")
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, `"Dune" (rented)`)

	txs := fake.postedTransactions()
	require.Len(t, txs, 2)
	require.Equal(t, "buy", txs[0]["transactionType"])
	require.Equal(t, "rent", txs[1]["transactionType"])
}

func TestReviewCommand(t *testing.T) {
	fake, url := newMarketplace(t)

	code, _, _ := runCLI(t, "review", "-api-url", url, "-id", "42", "-user", "7", "-username", "ada", "-rating", "", "-comment", "Great")
	require.Equal(t, exitError, code)
	require.Empty(t, fake.postedReviews(), "invalid form must not reach the server")

	code, stdout, _ := runCLI(t, "review", "-api-url", url, "-id", "42", "-user", "7", "-username", "ada", "-rating", "4", "-comment", "Great")
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "Comment: Great")
	reviews := fake.postedReviews()
	require.Len(t, reviews, 1)
	require.EqualValues(t, 4, reviews[0]["rating"])
}

func TestBooksCommand(t *testing.T) {
	_, url := newMarketplace(t)

	code, stdout, _ := runCLI(t, "books", "-api-url", url)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "TITLE")
	require.Contains(t, stdout, "Frank Herbert")
}

func TestCreateWriter(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: "csv"},
		{format: "json"},
		{format: "api"},
		{format: "tee"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.OutputFormat = tt.format
			cfg.OutputFile = filepath.Join(dir, "out-"+tt.format)

			writer, err := createWriter(context.Background(), cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, writer.Close())

			if tt.format == "tee" {
				require.IsType(t, &pipeline.TeeWriter{}, writer)
			}
		})
	}
}
