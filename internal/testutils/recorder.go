// Package testutils provides shared test infrastructure.
package testutils

import (
	"sync"

	"github.com/milkyapps/llvmgr/internal/progress"
)

// Call is one update captured by a Recorder.
type Call struct {
	Kind          progress.Kind
	Text          string
	Percentage    float64
	HasPercentage bool
}

// Recorder is a progress.Reporter that keeps every update in order.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

var _ progress.Reporter = (*Recorder)(nil)

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) SetSubtask(text string) error {
	return r.record(Call{Kind: progress.KindSetSubtask, Text: text})
}

func (r *Recorder) SetSubtaskWithPercentage(text string, p float64) error {
	return r.record(Call{Kind: progress.KindSetSubtask, Text: text, Percentage: p, HasPercentage: true})
}

func (r *Recorder) SetPercentage(p float64) error {
	return r.record(Call{Kind: progress.KindSetPercentage, Percentage: p, HasPercentage: true})
}

func (r *Recorder) Finish() error {
	return r.record(Call{Kind: progress.KindFinish})
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Percentages returns the values of every SetPercentage call.
func (r *Recorder) Percentages() []float64 {
	var out []float64
	for _, c := range r.Calls() {
		if c.Kind == progress.KindSetPercentage {
			out = append(out, c.Percentage)
		}
	}
	return out
}

// Subtasks returns the labels of every subtask update.
func (r *Recorder) Subtasks() []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Kind == progress.KindSetSubtask {
			out = append(out, c.Text)
		}
	}
	return out
}

// LastPercentage returns the final SetPercentage value, or -1 if none.
func (r *Recorder) LastPercentage() float64 {
	p := r.Percentages()
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}
