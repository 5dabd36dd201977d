// Package progress reports export progress on the terminal (progress bars)
// or on the event bus.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/itisfoundation/osparc-tables/internal/events"
)

// Reporter receives row progress of one export.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements Reporter with a single terminal progress bar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a reporter drawing on out (nil = stderr).
func NewCLIProgress(out io.Writer) *CLIProgress {
	if out == nil {
		out = os.Stderr
	}
	return &CLIProgress{out: out}
}

// Start initializes the progress bar with the row count and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current rows.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// BusProgress implements Reporter by publishing ExportProgressEvents.
type BusProgress struct {
	eventBus    *events.EventBus
	resource    string
	destination string
	total       int64
	current     int64
}

// NewBusProgress creates a reporter publishing on eventBus.
func NewBusProgress(eventBus *events.EventBus, resource, destination string) *BusProgress {
	return &BusProgress{
		eventBus:    eventBus,
		resource:    resource,
		destination: destination,
	}
}

func (p *BusProgress) publish(stage string, err error) {
	p.eventBus.Publish(&events.ExportProgressEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventExportProgress,
			Time:      time.Now(),
		},
		Resource:    p.resource,
		Destination: p.destination,
		Stage:       stage,
		Rows:        p.current,
		Total:       p.total,
		Error:       err,
	})
}

// Start publishes the row count.
func (p *BusProgress) Start(total int64, description string) {
	p.total = total
	p.current = 0
	p.publish("started", nil)
}

// Update publishes rows written so far.
func (p *BusProgress) Update(current int64) {
	p.current = current
	p.publish("rows", nil)
}

// Finish publishes completion.
func (p *BusProgress) Finish() {
	p.current = p.total
	p.publish("done", nil)
}

// Error publishes a failed completion.
func (p *BusProgress) Error(err error) {
	if err != nil {
		p.publish("done", err)
	}
}

// SetDescription publishes a stage change.
func (p *BusProgress) SetDescription(desc string) {
	p.publish(desc, nil)
}

// NoOpProgress is a reporter that does nothing.
type NoOpProgress struct{}

// NewNoOpProgress creates a no-op reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}
