package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// MultiUI draws one bar per table when several exports run at once.
// On a non-terminal it prints one line per start and completion instead.
type MultiUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	total      int
	completed  int32
	mu         sync.Mutex // serializes non-terminal output
}

// NewMultiUI creates a UI for total tables writing to f (nil = stderr).
func NewMultiUI(f *os.File, total int) *MultiUI {
	if f == nil {
		f = os.Stderr
	}
	isTerminal := term.IsTerminal(int(f.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSI(f)
		p = mpb.New(
			mpb.WithOutput(f),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &MultiUI{
		progress:   p,
		out:        f,
		isTerminal: isTerminal,
		total:      total,
	}
}

// TableBar is the progress of one table export. It implements Reporter.
type TableBar struct {
	ui          *MultiUI
	bar         *mpb.Bar
	index       int
	resource    string
	destination string
	startTime   time.Time

	rows  atomic.Int64
	total atomic.Int64
}

// AddBar adds a bar for the index-th table.
func (u *MultiUI) AddBar(index int, resource, destination string) *TableBar {
	tb := &TableBar{
		ui:          u,
		index:       index,
		resource:    resource,
		destination: destination,
		startTime:   time.Now(),
	}

	if u.isTerminal {
		tb.bar = u.progress.New(0,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("[%d/%d] %s → %s", index, u.total, resource, destination), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("%d / %d rows", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	}
	return tb
}

func (u *MultiUI) println(format string, args ...interface{}) {
	msg := fmt.Sprintf(format+"\n", args...)
	if u.isTerminal {
		_, _ = u.progress.Write([]byte(msg))
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprint(u.out, msg)
}

// Start sets the row count of the table.
func (b *TableBar) Start(total int64, description string) {
	b.total.Store(total)
	if b.bar != nil {
		b.bar.SetTotal(total, false)
		return
	}
	b.ui.println("Exporting [%d/%d]: %s (%d rows) → %s", b.index, b.ui.total, b.resource, total, b.destination)
}

// Update moves the bar to current rows.
func (b *TableBar) Update(current int64) {
	b.rows.Store(current)
	if b.bar != nil {
		b.bar.SetCurrent(current)
	}
}

// Finish marks the export done and prints a summary line.
func (b *TableBar) Finish() {
	total := b.total.Load()
	if b.bar != nil {
		b.bar.SetCurrent(total)
		b.bar.SetTotal(total, true)
	}
	b.ui.println("✓ %s → %s (%d rows, %s)", b.resource, b.destination, total, time.Since(b.startTime).Round(time.Millisecond))
	atomic.AddInt32(&b.ui.completed, 1)
}

// Error aborts the bar, keeping it visible, and prints the failure.
func (b *TableBar) Error(err error) {
	if err == nil {
		return
	}
	if b.bar != nil {
		b.bar.Abort(false)
	}
	b.ui.println("✗ %s → %s: %v (after %d rows)", b.resource, b.destination, err, b.rows.Load())
	atomic.AddInt32(&b.ui.completed, 1)
}

// SetDescription is shown only on non-terminals, where there is no bar.
func (b *TableBar) SetDescription(desc string) {
	if b.bar == nil {
		b.ui.println("  %s: %s", b.resource, desc)
	}
}

// Wait blocks until every bar is complete or aborted.
func (u *MultiUI) Wait() {
	u.progress.Wait()
}

// Writer returns a writer that prints above the bars.
func (u *MultiUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// Completed returns the number of finished or failed tables.
func (u *MultiUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// IsTerminal reports whether bars are drawn.
func (u *MultiUI) IsTerminal() bool {
	return u.isTerminal
}
