package buildlog

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoProgress is wrapped by every ParseLine failure.
var ErrNoProgress = errors.New("buildlog: no progress prefix")

// ParseError describes where a line stopped matching "[current/total]".
type ParseError struct {
	Line   string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("buildlog: %s at offset %d", e.Reason, e.Offset)
}

func (e *ParseError) Unwrap() error { return ErrNoProgress }

// Progress is a parsed "[current/total]" prefix.
type Progress struct {
	Current int
	Total   int
}

// Fraction returns Current/Total, or 0 when Total is 0.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total)
}

// ParseLine parses a line that begins with "[<digits>/<digits>]".
// Anything after the closing bracket is ignored.
func ParseLine(line string) (Progress, error) {
	fail := func(off int, reason string) (Progress, error) {
		return Progress{}, &ParseError{Line: line, Offset: off, Reason: reason}
	}

	if len(line) == 0 || line[0] != '[' {
		return fail(0, "missing '['")
	}

	pos := 1
	current, next, ok := digits(line, pos)
	if !ok {
		return fail(pos, "expected digits")
	}
	pos = next

	if pos >= len(line) || line[pos] != '/' {
		return fail(pos, "missing '/'")
	}
	pos++

	total, next, ok := digits(line, pos)
	if !ok {
		return fail(pos, "expected digits")
	}
	pos = next

	if pos >= len(line) || line[pos] != ']' {
		return fail(pos, "missing ']'")
	}

	return Progress{Current: current, Total: total}, nil
}

// digits reads a run of ASCII digits starting at pos.
func digits(s string, pos int) (value, end int, ok bool) {
	end = pos
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == pos {
		return 0, pos, false
	}
	v, err := strconv.Atoi(s[pos:end])
	if err != nil {
		return 0, pos, false
	}
	return v, end, true
}
