package watcher

import (
	"context"
	"time"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
)

// Debouncer merges bursts of change events into one, so a save touching
// several scripts triggers a single re-analysis
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer that flushes after quietPeriod without
// events, or after maxWait since the first event of a burst
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 4),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins debouncing in a goroutine
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet    <-chan time.Time
		deadline <-chan time.Time
		merged   *ChangeEvent
		count    int
	)

	flush := func() {
		if merged != nil {
			logging.Debug("flushing accumulated events", "count", count, "paths", len(merged.Paths))
			select {
			case d.output <- *merged:
			case <-ctx.Done():
			}
		}
		merged, count = nil, 0
		quiet, deadline = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			if merged == nil {
				merged = &ChangeEvent{Type: event.Type}
				deadline = time.After(d.maxWait)
			}
			// An XML change affects every page, so it takes precedence in the merged event
			if event.Type == ChangeTypeXML {
				merged.Type = ChangeTypeXML
			}
			merged.Paths = append(merged.Paths, event.Paths...)
			merged.Timestamp = event.Timestamp
			count++
			quiet = time.After(d.quietPeriod)

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
