package platetimer

import (
	"fmt"
	"sync"
	"time"

	"github.com/d093w1z/platetimer/internal/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithInterval sets the length of one tick. The default is one second.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithHandler registers the presentation callback. It receives a snapshot
// after every tick and every control transition, in order. The handler
// runs on the engine's goroutines. It may call Snapshot, State, Subscribe
// and Done, but must not call Arm, Start, Pause, Reset or Close synchronously.
func WithHandler(h func(Snapshot)) Option {
	return func(e *Engine) { e.onUpdate = h }
}

// WithCompletionHandler registers a callback raised once each time a
// countdown runs out, after the final snapshot. Same restrictions as WithHandler.
func WithCompletionHandler(h func()) Option {
	return func(e *Engine) { e.onDone = h }
}

// run is one tick goroutine. stop is closed to cancel it, exited is closed
// by the goroutine when it returns.
type run struct {
	stop   chan struct{}
	exited chan struct{}
}

// Engine counts a duration down one tick at a time.
// A zero Engine is not usable; create one with New.
//
// Lock order is ctrl, then emit, then mu. Handlers run with only emit held,
// so they may read the engine (Snapshot, State, Subscribe, Done).
type Engine struct {
	ctrl sync.Mutex // serialises control operations
	emit sync.Mutex // held from mutation until delivery ends, keeps delivery in mutation order
	mu   sync.Mutex // guards the fields below

	state    TimerState
	run      *run
	subs     []chan Snapshot
	doneCh   chan struct{}
	closed   bool
	interval time.Duration
	onUpdate func(Snapshot)
	onDone   func()
}

// New returns an idle engine with nothing armed.
func New(opts ...Option) *Engine {
	e := &Engine{
		interval: time.Second,
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Subscriptions ---

// Subscribe returns a channel receiving every snapshot. Snapshots are
// dropped for a subscriber that falls behind.
func (e *Engine) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe stops deliveries to a channel returned by Subscribe.
// The channel is not closed.
func (e *Engine) Unsubscribe(ch <-chan Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := make([]chan Snapshot, 0, len(e.subs))
	for _, s := range e.subs {
		if s != ch {
			subs = append(subs, s)
		}
	}
	e.subs = subs
}

// Done returns a channel closed when the current countdown completes.
// Arm and Reset replace it.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doneCh
}

// lock takes emit and mu for a mutation that will be published.
func (e *Engine) lock() {
	e.emit.Lock()
	e.mu.Lock()
}

func (e *Engine) unlock() {
	e.mu.Unlock()
	e.emit.Unlock()
}

// publish delivers the current state. Called with emit and mu held,
// releases both.
func (e *Engine) publish() {
	e.publishThen(nil)
}

func (e *Engine) publishThen(done chan struct{}) {
	snap := e.state.snapshot()
	subs := e.subs
	e.mu.Unlock()
	defer e.emit.Unlock()

	if e.onUpdate != nil {
		e.onUpdate(snap)
	}
	for _, ch := range subs {
		select {
		case ch <- snap:
		default: // drop if slow
		}
	}
	if done != nil {
		close(done)
		if e.onDone != nil {
			e.onDone()
		}
	}
}

// --- Control methods ---

// Arm sets a new duration in seconds. It fails with ErrInvalidState while
// the countdown is running.
func (e *Engine) Arm(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("arm %d: %w", seconds, ErrInvalidDuration)
	}

	e.ctrl.Lock()
	defer e.ctrl.Unlock()

	e.lock()
	if e.state.Phase == Running {
		e.unlock()
		return fmt.Errorf("arm while %s: %w", Running, ErrInvalidState)
	}
	e.cancel()
	e.state = armed(seconds)
	e.doneCh = make(chan struct{})
	logger.Debugf("countdown armed: %s", FormatClock(seconds))
	e.publish()
	return nil
}

// Start begins or resumes the countdown. It is a no-op while running and
// fails with ErrEmptyDuration when no time remains.
func (e *Engine) Start() error {
	e.ctrl.Lock()
	defer e.ctrl.Unlock()

	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return fmt.Errorf("start: engine closed: %w", ErrInvalidState)
	case e.state.Phase == Running:
		e.mu.Unlock()
		return nil
	case e.state.Remaining == 0:
		e.mu.Unlock()
		return fmt.Errorf("start: %w", ErrEmptyDuration)
	}
	prev := e.run
	e.mu.Unlock()

	// The previous goroutine has been cancelled or has completed; wait for
	// it so that two never tick the same state.
	if prev != nil {
		<-prev.exited
	}

	e.lock()
	r := &run{stop: make(chan struct{}), exited: make(chan struct{})}
	e.run = r
	e.state.Phase = Running
	go e.loop(r)
	logger.Debugf("countdown started at %s", FormatClock(e.state.Remaining))
	e.publish()
	return nil
}

// Pause stops decrementing and keeps the remaining time.
func (e *Engine) Pause() {
	e.ctrl.Lock()
	defer e.ctrl.Unlock()

	e.lock()
	if e.state.Phase != Running {
		e.unlock()
		return
	}
	e.cancel()
	e.state.Phase = Paused
	logger.Debugf("countdown paused at %s", FormatClock(e.state.Remaining))
	e.publish()
}

// Reset cancels the countdown and restores the armed duration.
func (e *Engine) Reset() {
	e.ctrl.Lock()
	defer e.ctrl.Unlock()

	e.lock()
	e.cancel()
	e.state = armed(e.state.Total)
	e.doneCh = make(chan struct{})
	logger.Debugf("countdown reset to %s", FormatClock(e.state.Total))
	e.publish()
}

// Close stops the tick goroutine and waits for it to exit. Start fails
// afterwards.
func (e *Engine) Close() {
	e.ctrl.Lock()
	defer e.ctrl.Unlock()

	e.mu.Lock()
	e.closed = true
	e.cancel()
	if e.state.Phase == Running {
		e.state.Phase = Paused
	}
	r := e.run
	e.mu.Unlock()

	if r != nil {
		<-r.exited
	}
}

// cancel signals the active goroutine to stop. Called with e.mu held.
func (e *Engine) cancel() {
	if e.run == nil {
		return
	}
	select {
	case <-e.run.stop:
	default:
		close(e.run.stop)
	}
}

// --- Readers ---

// Snapshot returns the current display values.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot()
}

// State returns a copy of the counting state.
func (e *Engine) State() TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// --- Tick loop ---

func (e *Engine) loop(r *run) {
	defer close(r.exited)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}
		if !e.tick(r) {
			return
		}
	}
}

// tick decrements once and reports whether the loop should continue.
func (e *Engine) tick(r *run) bool {
	e.lock()

	// A pause may have landed while we waited.
	select {
	case <-r.stop:
		e.unlock()
		return false
	default:
	}
	if e.state.Phase != Running || e.state.Remaining == 0 {
		e.unlock()
		return false
	}

	e.state.Remaining--
	if e.state.Remaining > 0 {
		e.publish()
		return true
	}

	e.state.Phase = Completed
	logger.Infof("countdown completed after %s", FormatClock(e.state.Total))
	e.publishThen(e.doneCh)
	return false
}
