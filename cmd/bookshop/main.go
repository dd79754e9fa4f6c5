package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/go-bookshop-client/api"
	"github.com/aluiziolira/go-bookshop-client/bookview"
	"github.com/aluiziolira/go-bookshop-client/config"
)

const (
	exitOK            = 0
	exitError         = 1
	exitLoginRequired = 2
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

// cliEnv carries what every subcommand needs.
type cliEnv struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

var commands = []command{
	{name: "view", usage: "show a book and its reviews", run: runView},
	{name: "buy", usage: "buy a book", run: runBuy},
	{name: "rent", usage: "rent a book", run: runRent},
	{name: "review", usage: "post a review", run: runReview},
	{name: "books", usage: "list books", run: runBooks},
	{name: "serve", usage: "run the dev server", run: runServe},
	{name: "import", usage: "import listings from a catalog site", run: runImport},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitError
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitError
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "invalid environment: %v\n", err)
		return exitError
	}

	err = cmd.run(ctx, &cliEnv{cfg: cfg, stdout: stdout, stderr: stderr}, args[1:])
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, bookview.ErrLoginRequired):
		fmt.Fprintf(stderr, "login required: sign in at %s\n", bookview.LoginPath)
		return exitLoginRequired
	default:
		fmt.Fprintf(stderr, "error: %s\n", api.Message(err))
		slog.Debug("command failed", slog.Any("error", err))
		return exitError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: bookshop <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
}

// newFlagSet binds the flags shared by every subcommand to cfg.
func newFlagSet(name string, env *cliEnv) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.StringVar(&env.cfg.APIBaseURL, "api-url", env.cfg.APIBaseURL, "Marketplace API base URL")
	fs.DurationVar(&env.cfg.Timeout, "timeout", env.cfg.Timeout, "Request timeout")
	fs.Float64Var(&env.cfg.RateLimit, "rate", env.cfg.RateLimit, "API requests per second (0 disables)")
	fs.BoolVar(&env.cfg.Verbose, "v", env.cfg.Verbose, "Enable verbose logging")
	return fs
}

// setup installs the logger once flags are parsed.
func setup(env *cliEnv) *slog.Logger {
	logger, level := newLogger(env.stderr, env.cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	return logger
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
