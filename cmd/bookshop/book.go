package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/bookview"
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/render"
)

type sessionFlags struct {
	id       int
	username string
}

func bindSession(fs *flag.FlagSet) *sessionFlags {
	s := &sessionFlags{}
	fs.IntVar(&s.id, "user", 0, "Signed-in user id (0 means anonymous)")
	fs.StringVar(&s.username, "username", "", "Signed-in user name")
	return s
}

func (s *sessionFlags) user() *models.User {
	if s.id <= 0 {
		return nil
	}
	return &models.User{ID: s.id, Username: s.username}
}

// openPage mounts the book page for id and waits for its initial loads.
func openPage(ctx context.Context, env *cliEnv, logger *slog.Logger, id string, user *models.User) (*bookview.Page, error) {
	if err := env.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	client, err := api.NewClient(env.cfg, nil)
	if err != nil {
		return nil, err
	}

	page := bookview.NewPage(bookview.Deps{
		Books:        client,
		Reviews:      client,
		Transactions: client,
		Session:      bookview.StaticSession{User: user},
		Navigator:    &bookview.RecordingNavigator{},
		Notifier:     bookview.LogNotifier{Logger: logger},
		Logger:       logger,
	})
	page.Mount(ctx, id)
	page.Wait()
	return page, nil
}

// loadedView returns the page view, or an error when the book failed to load.
func loadedView(page *bookview.Page) (bookview.View, error) {
	v := page.View()
	if v.Section == bookview.SectionError {
		return v, errors.New(v.Error)
	}
	return v, nil
}

func writeView(w io.Writer, v bookview.View, format string) error {
	switch strings.ToLower(format) {
	case "text":
		return render.Text(w, v)
	case "html":
		return render.BookPage(v).Render(context.Background(), w)
	case "summary":
		_, err := fmt.Fprintln(w, render.Summary(v))
		return err
	default:
		return fmt.Errorf("unsupported view format: %s", format)
	}
}

func runView(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("view", env)
	id := fs.String("id", "", "Book id")
	format := fs.String("format", "text", "Output format: text, html, or summary")
	session := bindSession(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setup(env)

	page, err := openPage(ctx, env, logger, *id, session.user())
	if err != nil {
		return err
	}
	defer page.Unmount()

	v, loadErr := loadedView(page)
	if err := writeView(env.stdout, v, *format); err != nil {
		return err
	}
	return loadErr
}

func runBuy(ctx context.Context, env *cliEnv, args []string) error {
	return runTransaction(ctx, env, "buy", args, (*bookview.Page).Buy)
}

func runRent(ctx context.Context, env *cliEnv, args []string) error {
	return runTransaction(ctx, env, "rent", args, (*bookview.Page).Rent)
}

func runTransaction(ctx context.Context, env *cliEnv, name string, args []string, act func(*bookview.Page, context.Context) error) error {
	fs := newFlagSet(name, env)
	id := fs.String("id", "", "Book id")
	session := bindSession(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setup(env)

	page, err := openPage(ctx, env, logger, *id, session.user())
	if err != nil {
		return err
	}
	defer page.Unmount()

	if _, err := loadedView(page); err != nil {
		return err
	}
	if err := act(page, ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout, render.Summary(page.View()))
	return err
}

func runReview(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("review", env)
	id := fs.String("id", "", "Book id")
	rating := fs.String("rating", "5", "Rating from 1 to 5")
	comment := fs.String("comment", "", "Review text")
	session := bindSession(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := setup(env)

	page, err := openPage(ctx, env, logger, *id, session.user())
	if err != nil {
		return err
	}
	defer page.Unmount()

	if _, err := loadedView(page); err != nil {
		return err
	}
	page.SetRatingText(*rating)
	page.SetComment(*comment)
	if err := page.SubmitReview(ctx); err != nil {
		return err
	}
	return render.Text(env.stdout, page.View())
}

func runBooks(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("books", env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setup(env)
	if err := env.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := api.NewClient(env.cfg, nil)
	if err != nil {
		return err
	}
	books, err := client.ListBooks(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPRICE\tSTATUS")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n", b.ID, b.Title, b.Author, b.Price, b.Status)
	}
	return tw.Flush()
}
