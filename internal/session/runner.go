package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/fenilsonani/dlsort/internal/progress"
)

// ErrSessionInProgress is returned when a sort is started while another runs
var ErrSessionInProgress = errors.New("a sort session is already in progress")

// Runner runs at most one session at a time on its own goroutine
type Runner struct {
	mu     sync.Mutex
	active *Handle

	// OnComplete, if set, is called on the session goroutine after every
	// session finishes, before Running reports false and before its Handle
	// reports done.
	OnComplete func(*Report, error)
}

// Handle is the caller's view of a running session
type Handle struct {
	// Events carries one progress.Event per relocated file. It is closed
	// when the session finishes.
	Events *progress.Queue

	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
	report  *Report
	err     error
}

// Start launches a session for req on a new goroutine. req must hold the
// caller's own copy of the rules and destinations. It returns
// ErrSessionInProgress while a previous session is still running.
func (r *Runner) Start(ctx context.Context, req Request) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrSessionInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		Events:  progress.NewQueue(),
		session: New(req),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.active = h

	go r.run(runCtx, h)

	return h, nil
}

// Running reports whether a session is in flight
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Runner) run(ctx context.Context, h *Handle) {
	defer h.cancel()

	report, err := h.session.Run(ctx, h.Events.Push)
	h.report, h.err = report, err
	h.Events.Close()

	// The runner stays busy until OnComplete returns.
	if r.OnComplete != nil {
		r.OnComplete(report, err)
	}

	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()

	close(h.done)
}

// ID returns the session identifier
func (h *Handle) ID() uuid.UUID {
	return h.session.ID()
}

// State returns the session's current state
func (h *Handle) State() State {
	return h.session.State()
}

// Total returns the file count once scanning has finished
func (h *Handle) Total() int {
	return h.session.Total()
}

// Cancel asks the session to stop before the next file
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the session has finished
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the session finishes and returns its report
func (h *Handle) Wait() (*Report, error) {
	<-h.done
	return h.report, h.err
}
