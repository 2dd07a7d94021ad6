package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	defaultWidth = 80

	// reservedColumns is what prefix, spinner, bar and ETA take from a row.
	reservedColumns = 55
	minLabelWidth   = 10
	barWidth        = 40
)

var spinnerFrames = []string{"⠁", "⠂", "⠄", "⡀", "⢀", "⠠", "⠐", "⠈"}

// task is one row. Only the broker goroutine reads or writes it.
type task struct {
	name     string
	subtask  string
	percent  float64
	finished bool
	frame    int
	started  time.Time
}

type broker struct {
	out        io.Writer
	ansi       bool
	labelWidth int
	bar        bar.Model
	prefix     lipgloss.Style
	log        *zap.Logger
	now        func() time.Time

	tasks []*task
	drawn int
	dirty bool
}

func newBroker(opts Options) *broker {
	fd, isTerm := terminalFD(opts.Output)

	width := opts.Width
	if width <= 0 {
		width = defaultWidth
		if isTerm {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				width = w
			}
		}
	}

	labelWidth := width - reservedColumns
	if labelWidth < minLabelWidth {
		labelWidth = minLabelWidth
	}

	ansi := isTerm
	if opts.ANSI != nil {
		ansi = *opts.ANSI
	}

	return &broker{
		out:        opts.Output,
		ansi:       ansi,
		labelWidth: labelWidth,
		bar:        bar.New(bar.WithWidth(barWidth), bar.WithoutPercentage(), bar.WithDefaultGradient()),
		prefix:     lipgloss.NewStyle().Bold(true).Faint(true),
		log:        opts.Logger,
		now:        time.Now,
	}
}

func terminalFD(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// run is the broker loop. It returns on Shutdown, closing box.stopped.
func (b *broker) run(box *mailbox, tick time.Duration) {
	defer close(box.stopped)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case msg := <-box.out:
			if msg.Kind == KindShutdown {
				if b.dirty {
					b.repaint()
				}
				b.log.Debug("progress broker stopped", zap.Int("tasks", len(b.tasks)))
				return
			}
			b.apply(msg)
		case <-ticker.C:
			if b.dirty {
				b.repaint()
			}
		}
	}
}

func (b *broker) apply(msg Message) {
	if msg.Kind == KindNewTask {
		b.tasks = append(b.tasks, &task{name: msg.Name, started: b.now()})
		b.render(len(b.tasks) - 1)
		return
	}

	if msg.ID < 0 || msg.ID >= len(b.tasks) {
		b.log.Warn("progress update for unknown task",
			zap.Stringer("kind", msg.Kind),
			zap.Int("id", msg.ID),
			zap.Int("tasks", len(b.tasks)),
		)
		return
	}
	t := b.tasks[msg.ID]

	switch msg.Kind {
	case KindSetSubtask:
		t.subtask = msg.Text
		t.percent = 0
		if msg.HasPercentage {
			t.percent = msg.Percentage
		}
		b.render(msg.ID)
	case KindFinish:
		t.subtask = ""
		t.finished = true
		t.percent = 1
		b.render(msg.ID)
	case KindSetPercentage:
		t.percent = msg.Percentage
		b.dirty = true
	}
}

// render is the full repaint path. changed is the row that triggered it and
// is the only row written when cursor addressing is unavailable.
func (b *broker) render(changed int) {
	for _, t := range b.tasks {
		if !t.finished {
			t.frame++
		}
	}

	if !b.ansi {
		fmt.Fprintln(b.out, b.row(changed))
		b.dirty = false
		return
	}
	b.repaint()
}

// repaint redraws the whole block in place.
func (b *broker) repaint() {
	b.dirty = false
	if !b.ansi {
		return
	}

	var sb strings.Builder
	if b.drawn > 0 {
		fmt.Fprintf(&sb, "\x1b[%dA", b.drawn)
	}
	for i := range b.tasks {
		sb.WriteString("\r\x1b[2K")
		sb.WriteString(b.row(i))
		sb.WriteByte('\n')
	}
	b.drawn = len(b.tasks)

	if _, err := io.WriteString(b.out, sb.String()); err != nil {
		b.log.Debug("progress repaint failed", zap.Error(err))
	}
}

func (b *broker) row(i int) string {
	t := b.tasks[i]

	spinner := " "
	if !t.finished {
		spinner = spinnerFrames[t.frame%len(spinnerFrames)]
	}

	return strings.Join([]string{
		b.prefix.Render(fmt.Sprintf("[%d/%d]", i+1, len(b.tasks))),
		spinner,
		padLabel(fitLabel(t.name, t.subtask, b.labelWidth), b.labelWidth),
		b.bar.ViewAs(displayFraction(t.percent)),
		t.eta(b.now()),
	}, " ")
}

// displayFraction clamps p for drawing only; the stored value stays raw.
func displayFraction(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(1, p))
}

func (t *task) eta(now time.Time) string {
	if t.finished || t.percent <= 0 || t.percent >= 1 {
		return ""
	}
	elapsed := now.Sub(t.started)
	remaining := time.Duration(float64(elapsed) * (1 - t.percent) / t.percent)
	return formatDuration(remaining)
}
