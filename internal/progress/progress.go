package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"

	"github.com/go-scripts/profileharvest/internal/harvest"
)

// Stats is a point-in-time view of a running harvest.
type Stats struct {
	Quota    int
	Accepted int
	Dropped  int
	Page     int
	Elapsed  time.Duration
}

// Tracker shows a spinner with a quota bar while a harvest runs. It
// implements harvest.Observer.
type Tracker struct {
	mu    sync.Mutex
	w     io.Writer
	bar   progress.Model
	spin  *spinner.Spinner
	stats Stats
	start time.Time
	done  bool
}

// New creates a Tracker writing to w for a harvest of quota records.
func New(w io.Writer, quota int) *Tracker {
	return &Tracker{
		w:     w,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		spin:  spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w)),
		stats: Stats{Quota: quota},
		start: time.Now(),
	}
}

// Start begins animating. The spinner stays silent when w is not a terminal.
func (t *Tracker) Start(label string) {
	t.spin.Lock()
	t.spin.Suffix = " " + label
	t.spin.Unlock()
	t.spin.Start()
}

// Stop halts the spinner without printing a final line.
func (t *Tracker) Stop() {
	t.spin.Stop()
}

func (t *Tracker) PageStarted(page int) {
	t.mu.Lock()
	t.stats.Page = page
	t.mu.Unlock()
	t.refresh()
}

func (t *Tracker) RowAccepted(_ harvest.Record, accepted, quota int) {
	t.mu.Lock()
	t.stats.Accepted = accepted
	t.stats.Quota = quota
	t.mu.Unlock()
	t.refresh()
}

func (t *Tracker) RowDropped(_, _ int, _ error) {
	t.mu.Lock()
	t.stats.Dropped++
	t.mu.Unlock()
}

// Finished stops the spinner and prints the final bar.
func (t *Tracker) Finished(res *harvest.Result, err error) {
	t.spin.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	if res != nil {
		t.stats.Accepted = len(res.Records)
	}
	t.stats.Elapsed = time.Since(t.start)

	status := "done"
	switch {
	case err != nil:
		status = "failed"
	case res != nil:
		status = res.Stop.String()
	}
	fmt.Fprintf(t.w, "%s (%s, %s)\n", t.line(), status, t.stats.Elapsed.Round(time.Second))
}

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	if !t.done {
		s.Elapsed = time.Since(t.start)
	}
	return s
}

// Fraction is the share of the quota collected so far.
func (s Stats) Fraction() float64 {
	if s.Quota <= 0 {
		return 0
	}
	f := float64(s.Accepted) / float64(s.Quota)
	if f > 1 {
		return 1
	}
	return f
}

func (t *Tracker) refresh() {
	t.mu.Lock()
	line := t.line()
	t.mu.Unlock()

	t.spin.Lock()
	t.spin.Suffix = " " + line
	t.spin.Unlock()
}

// line renders the bar; callers hold mu.
func (t *Tracker) line() string {
	return fmt.Sprintf("page %d %s %d/%d profiles",
		t.stats.Page, t.bar.ViewAs(t.stats.Fraction()), t.stats.Accepted, t.stats.Quota)
}
