package progress

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBrokerGone is returned by every Registry and Handle call made after the
// broker has exited. It is an expected outcome during teardown.
var ErrBrokerGone = errors.New("progress: broker is gone")

// Reporter is the subset of Handle that long running stages report through.
type Reporter interface {
	SetSubtask(text string) error
	SetSubtaskWithPercentage(text string, p float64) error
	SetPercentage(p float64) error
	Finish() error
}

// Options configures the broker.
type Options struct {
	// Output is where rows are drawn.
	// Default: os.Stderr
	Output io.Writer

	// Width is the terminal width in columns. When zero it is read from
	// Output if that is a terminal, falling back to 80.
	Width int

	// TickInterval is how often pending percentage updates are repainted.
	// Default: 100ms
	TickInterval time.Duration

	// ANSI forces cursor-addressed repainting on or off. When nil it is
	// enabled only if Output is a terminal.
	ANSI *bool

	// Logger receives diagnostics. Default: no-op.
	Logger *zap.Logger
}

// Registry creates tasks and owns the broker's lifetime.
type Registry struct {
	box *mailbox
	b   *broker

	mu   sync.Mutex
	next int

	closeOnce sync.Once
	closeErr  error
}

// New starts a broker and returns the registry that feeds it. Call Close when
// the surrounding operation ends, on success and failure alike.
func New(opts Options) *Registry {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	box := newMailbox()
	b := newBroker(opts)
	go b.run(box, opts.TickInterval)

	return &Registry{box: box, b: b}
}

// NewTask appends a row and returns the handle that updates it. Ids start at
// 0 and increase by one per call, matching the row's position.
func (r *Registry) NewTask(name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.box.send(Message{Kind: KindNewTask, Name: name}); err != nil {
		return nil, err
	}

	id := r.next
	r.next++
	return &Handle{id: id, box: r.box}, nil
}

// Close sends Shutdown exactly once and waits for the broker to return.
// Subsequent calls return the result of the first.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.box.send(Message{Kind: KindShutdown})
		<-r.box.stopped
	})
	return r.closeErr
}

// Handle sends updates for one task. It holds no reference to the task
// itself, only its id.
type Handle struct {
	id  int
	box *mailbox
}

var _ Reporter = (*Handle)(nil)

// ID returns the task's id, which is also its row index.
func (h *Handle) ID() int {
	return h.id
}

// SetSubtask sets the row's label suffix and resets its bar to zero.
func (h *Handle) SetSubtask(text string) error {
	return h.box.send(Message{Kind: KindSetSubtask, ID: h.id, Text: text})
}

// SetSubtaskWithPercentage sets the row's label suffix and bar together.
func (h *Handle) SetSubtaskWithPercentage(text string, p float64) error {
	return h.box.send(Message{Kind: KindSetSubtask, ID: h.id, Text: text, Percentage: p, HasPercentage: true})
}

// SetPercentage updates the row's bar. p is a fraction and is not clamped.
func (h *Handle) SetPercentage(p float64) error {
	return h.box.send(Message{Kind: KindSetPercentage, ID: h.id, Percentage: p})
}

// Finish clears the subtask label and fills the bar.
func (h *Handle) Finish() error {
	return h.box.send(Message{Kind: KindFinish, ID: h.id})
}

// Discard is a Reporter that drops every update.
var Discard Reporter = discard{}

type discard struct{}

func (discard) SetSubtask(string) error                        { return nil }
func (discard) SetSubtaskWithPercentage(string, float64) error { return nil }
func (discard) SetPercentage(float64) error                    { return nil }
func (discard) Finish() error                                  { return nil }
