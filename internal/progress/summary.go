package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Summary describes a finished run for the closing panel.
type Summary struct {
	Term       string
	Session    string
	Quota      int
	Collected  int
	Pages      int
	Rejected   int
	Skipped    int
	Duplicates int
	Stop       string
	Elapsed    time.Duration
	Outputs    []string
	Err        error
}

// Render draws the summary panel.
func (s Summary) Render() string {
	rows := []struct {
		label string
		value string
	}{
		{"Search", s.Term},
		{"Session", s.Session},
		{"Collected", fmt.Sprintf("%d/%d", s.Collected, s.Quota)},
		{"Pages", fmt.Sprintf("%d", s.Pages)},
		{"Dropped", fmt.Sprintf("%d rejected, %d unreadable, %d duplicate", s.Rejected, s.Skipped, s.Duplicates)},
		{"Outcome", s.Stop},
		{"Elapsed", s.Elapsed.Round(time.Second).String()},
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r.label))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Harvest summary") + "\n\n")
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		label := fmt.Sprintf("%-*s", width+1, r.label+":")
		b.WriteString(labelStyle.Render(label) + " " + valueStyle.Render(r.value) + "\n")
	}
	for _, out := range s.Outputs {
		b.WriteString(labelStyle.Render("Saved:") + " " + valueStyle.Render(out) + "\n")
	}
	if s.Err != nil {
		b.WriteString(errorStyle.Render("Error: "+s.Err.Error()) + "\n")
	}
	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}
