// Package async provides a loading/error/data state machine around a single
// asynchronous operation.
//
// An Action never lets an older invocation overwrite the state of a newer one:
// each invocation takes a generation number when it begins, and only the
// latest generation may commit its outcome. Reset invalidates everything in
// flight, including invocations begun but not yet running.
package async

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrSuperseded is returned by Invoke when a newer invocation or a Reset
// happened before this one settled. The state was left untouched.
var ErrSuperseded = errors.New("async: invocation superseded")

// Func is the operation wrapped by an Action.
type Func[A, T any] func(ctx context.Context, args A) (T, error)

// State is a snapshot of an Action.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     string
}

// Option configures an Action.
type Option func(*options)

type options struct {
	message func(error) string
}

// WithMessage sets how a failure is turned into the human-readable Err field.
func WithMessage(fn func(error) string) Option {
	return func(o *options) {
		if fn != nil {
			o.message = fn
		}
	}
}

// Action tracks the outcome of the most recent invocation of fn.
type Action[A, T any] struct {
	fn      Func[A, T]
	message func(error) string

	mu        sync.Mutex
	state     State[T]
	gen       uint64
	listeners map[uint64]func(State[T])
	nextID    uint64
}

// New wraps fn.
func New[A, T any](fn Func[A, T], opts ...Option) *Action[A, T] {
	o := options{message: defaultMessage}
	for _, opt := range opts {
		opt(&o)
	}
	return &Action[A, T]{
		fn:        fn,
		message:   o.message,
		listeners: make(map[uint64]func(State[T])),
	}
}

// Ticket is a reserved invocation of an Action, returned by Begin.
type Ticket struct {
	gen uint64
}

// Invoke runs the operation with args.
//
// The previous error is cleared and Loading set in the same transition. On
// success Data holds the result; on failure Err holds a message and Data keeps
// its previous value. The error is also returned so call sites can react to it
// directly. If the invocation was superseded the returned error wraps
// ErrSuperseded and the state is not modified.
func (a *Action[A, T]) Invoke(ctx context.Context, args A) (T, error) {
	return a.Run(ctx, a.Begin(), args)
}

// Begin reserves the next invocation and moves the state to loading. Any
// invocation begun earlier is superseded from this point on, even if it has
// not started running yet.
func (a *Action[A, T]) Begin() Ticket {
	a.mu.Lock()
	a.gen++
	t := Ticket{gen: a.gen}
	a.state.Err = ""
	a.state.Loading = true
	snapshot, listeners := a.snapshotLocked()
	a.mu.Unlock()
	notify(listeners, snapshot)
	return t
}

// Run executes the invocation reserved by t. When t was superseded before
// Run is called, the operation is skipped and ErrSuperseded returned.
func (a *Action[A, T]) Run(ctx context.Context, t Ticket, args A) (T, error) {
	var zero T
	if !a.Current(t) {
		return zero, ErrSuperseded
	}

	result, err := a.fn(ctx, args)

	a.mu.Lock()
	if t.gen != a.gen {
		a.mu.Unlock()
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrSuperseded, err)
		}
		return result, ErrSuperseded
	}
	a.state.Loading = false
	if err != nil {
		a.state.Err = a.message(err)
	} else {
		a.state.Data = result
		a.state.HasData = true
	}
	snapshot, listeners := a.snapshotLocked()
	a.mu.Unlock()
	notify(listeners, snapshot)

	return result, err
}

// Current reports whether t is still the latest invocation.
func (a *Action[A, T]) Current(t Ticket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return t.gen == a.gen
}

// State returns the current snapshot.
func (a *Action[A, T]) State() State[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Data returns the last successful result, if any.
func (a *Action[A, T]) Data() (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Data, a.state.HasData
}

// Loading reports whether an invocation is in flight.
func (a *Action[A, T]) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Loading
}

// Set replaces Data locally without invoking the operation.
func (a *Action[A, T]) Set(data T) {
	a.mu.Lock()
	a.state.Data = data
	a.state.HasData = true
	snapshot, listeners := a.snapshotLocked()
	a.mu.Unlock()
	notify(listeners, snapshot)
}

// Update applies fn to Data when present. It reports whether an update happened.
func (a *Action[A, T]) Update(fn func(T) T) bool {
	a.mu.Lock()
	if !a.state.HasData {
		a.mu.Unlock()
		return false
	}
	a.state.Data = fn(a.state.Data)
	snapshot, listeners := a.snapshotLocked()
	a.mu.Unlock()
	notify(listeners, snapshot)
	return true
}

// Reset clears the state and invalidates every invocation still in flight.
func (a *Action[A, T]) Reset() {
	a.mu.Lock()
	a.gen++
	a.state = State[T]{}
	snapshot, listeners := a.snapshotLocked()
	a.mu.Unlock()
	notify(listeners, snapshot)
}

// Subscribe registers fn to receive every state transition. Listeners run on
// the goroutine that caused the transition, outside the Action's lock.
func (a *Action[A, T]) Subscribe(fn func(State[T])) (cancel func()) {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.listeners[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

func (a *Action[A, T]) snapshotLocked() (State[T], []func(State[T])) {
	if len(a.listeners) == 0 {
		return a.state, nil
	}
	ids := make([]uint64, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(State[T]), 0, len(ids))
	for _, id := range ids {
		out = append(out, a.listeners[id])
	}
	return a.state, out
}

func notify[T any](listeners []func(State[T]), s State[T]) {
	for _, fn := range listeners {
		fn(s)
	}
}

func defaultMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
