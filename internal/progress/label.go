package progress

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

const ellipsis = "..."

// fitLabel composes "name - subtask" and shortens it to at most width display
// columns. Cuts happen between grapheme clusters, so the result is always
// valid UTF-8 and never splits a combined character. When the budget is too
// small to hold an ellipsis the subtask is dropped and the name is cut bare.
func fitLabel(name, subtask string, width int) string {
	label := name
	if subtask != "" {
		label = name + " - " + subtask
	}

	if runewidth.StringWidth(label) <= width {
		return label
	}
	if width <= len(ellipsis) {
		return truncateWidth(name, width)
	}
	return truncateWidth(label, width-len(ellipsis)) + ellipsis
}

// truncateWidth returns the longest grapheme-aligned prefix of s whose display
// width does not exceed width.
func truncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}

	var sb strings.Builder
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Str()
		w := runewidth.StringWidth(cluster)
		if used+w > width {
			break
		}
		sb.WriteString(cluster)
		used += w
	}
	return sb.String()
}

func padLabel(s string, width int) string {
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}
