package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// SourceOutcome is what the display needs to know about a finished source
type SourceOutcome struct {
	Label    string
	Fetched  int
	Inserted int
	Skipped  int
	Filtered int
	Err      error

	Interrupted bool
}

// ProgressDisplay prints one line per finished source and a running bar
type ProgressDisplay struct {
	mu        sync.Mutex
	project   string
	total     int
	done      int
	inserted  int
	failed    int
	startTime time.Time
	verbose   bool
	now       func() time.Time
}

func NewProgressDisplay(project string, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		project:   project,
		startTime: time.Now(),
		verbose:   verbose,
		now:       time.Now,
	}
}

// Start records how many sources the run will visit
func (p *ProgressDisplay) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.startTime = p.now()
	fmt.Fprintf(Output, "%s %s: %d sources\n", Magenta("→"), Cyan(p.project), total)
}

// SourceDone prints the outcome of one source
func (p *ProgressDisplay) SourceDone(o SourceOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.inserted += o.Inserted
	switch {
	case o.Interrupted:
		fmt.Fprintf(Output, "%s %s interrupted • %d new • %d known\n",
			Yellow("!"), o.Label, o.Inserted, o.Skipped)
	case o.Err != nil:
		p.failed++
		fmt.Fprintf(Output, "%s %s %s\n", Red("✗"), o.Label, Dim(o.Err.Error()))
	case p.verbose || o.Inserted > 0:
		fmt.Fprintf(Output, "%s %s • %d fetched • %d new • %d known • %d filtered\n",
			Green("✓"), o.Label, o.Fetched, o.Inserted, o.Skipped, o.Filtered)
	}
	fmt.Fprintln(Output, Dim(p.bar()))
}

// bar renders the progress line; callers hold the lock
func (p *ProgressDisplay) bar() string {
	const width = 20
	filled := 0
	if p.total > 0 {
		filled = p.done * width / p.total
	}
	line := fmt.Sprintf("[%s] %d/%d • %d new • %s",
		strings.Repeat("━", filled)+strings.Repeat("─", width-filled),
		p.done, p.total, p.inserted, FormatDuration(p.now().Sub(p.startTime)))
	if p.failed > 0 {
		line += fmt.Sprintf(" • %d failed", p.failed)
	}
	return line
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
