package buildlog

import (
	"bufio"
	"fmt"
	"io"

	"github.com/milkyapps/llvmgr/internal/progress"
)

const maxLineSize = 1024 * 1024

// Tracker carries the last successfully parsed fraction across lines.
type Tracker struct {
	last float64
}

// Observe parses line and returns the current fraction. Lines without a
// progress prefix leave the previous fraction in place.
func (t *Tracker) Observe(line string) float64 {
	if p, err := ParseLine(line); err == nil {
		t.last = p.Fraction()
	}
	return t.last
}

// Last returns the most recent fraction.
func (t *Tracker) Last() float64 {
	return t.last
}

// Stream reads r line by line and reports each line as the subtask label with
// the sticky fraction. Reporter failures are ignored; progress is best effort.
func Stream(r io.Reader, rep progress.Reporter) error {
	var tracker Tracker

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		_ = rep.SetSubtaskWithPercentage(line, tracker.Observe(line))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read build output: %w", err)
	}
	return nil
}
