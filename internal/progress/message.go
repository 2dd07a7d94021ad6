package progress

import "fmt"

// Kind identifies the variant of a Message.
type Kind int

const (
	// KindNewTask appends a row named Message.Name.
	KindNewTask Kind = iota
	// KindSetSubtask sets the row's subtask label and, optionally, its percentage.
	KindSetSubtask
	// KindFinish marks the row as done.
	KindFinish
	// KindSetPercentage updates the row's bar without a full repaint.
	KindSetPercentage
	// KindShutdown stops the broker.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindNewTask:
		return "new_task"
	case KindSetSubtask:
		return "set_subtask"
	case KindFinish:
		return "finish"
	case KindSetPercentage:
		return "set_percentage"
	case KindShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one update delivered to the broker.
type Message struct {
	Kind Kind

	// ID is the target task. Unused by KindNewTask and KindShutdown.
	ID int

	// Name is the display name of a new task.
	Name string

	// Text is the subtask label.
	Text string

	// Percentage is a fraction, nominally 0..1. It is stored unclamped.
	Percentage float64

	// HasPercentage reports whether a KindSetSubtask message carries Percentage.
	HasPercentage bool
}
