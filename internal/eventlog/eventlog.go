// Package eventlog implements the logging/queue fabric (component G):
// a single-consumer queue of typed events, correlating each
// InjectionLog with its outcome (Abort/StackOverflow take precedence
// over a later Timeout), under-time rate limiting, and dual
// text+JSON emission. Grounded on spec.md §4.G and
// original_source/resources/threadFunctions.py's queueListener, with
// the producer-agnostic queue and JSON-array streaming style modeled
// on the teacher's internal/escrow and internal/fabric consumer loops
// (channel + select dispatch, append-only JSON array written
// incrementally).
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/byuccl/coast/internal/model"
)

// EventKind discriminates the typed events the queue carries.
type EventKind int

const (
	EventOutcome EventKind = iota
	EventInjectionLog
	EventLogMessage
	EventDiscardUART
	EventUnderTime
	EventNormalTime
	EventQueueStop
)

// Event is one item on the producer-agnostic queue.
type Event struct {
	Kind    EventKind
	Outcome model.Outcome
	Log     model.InjectionLog
	Message string
	Source  string // for EventLogMessage: "debugger", "emulator", "campaign"
}

// Consumer is the single consumer of the event queue: it correlates
// outcomes with injection logs, applies the under-time rate limit, and
// writes the human log and JSON array.
type Consumer struct {
	queue    chan Event
	textOut  io.Writer
	jsonOut  *bufio.Writer
	logger   *slog.Logger
	elfPath  string
	baseline float64 // measured baseline runtime, for under-time coercion

	mu            sync.Mutex
	pending       model.Outcome
	underTimeRun  int
	suppressed    bool
	wroteFirstLog bool
	resultRecorded chan struct{}
}

// NewConsumer builds a Consumer. textOut receives the human-readable
// log; jsonOut receives the ELF path line followed by the JSON array,
// both written by Run (spec.md §6's persisted-state layout).
func NewConsumer(textOut io.Writer, jsonOut io.Writer, elfPath string, baselineRuntime float64, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		queue:          make(chan Event, 256),
		textOut:        textOut,
		jsonOut:        bufio.NewWriter(jsonOut),
		logger:         logger,
		elfPath:        elfPath,
		baseline:       baselineRuntime,
		resultRecorded: make(chan struct{}, 1),
	}
}

// Publish enqueues an event; it never blocks the caller beyond the
// queue's buffer, matching spec.md §5's "every queue put" suspension
// point without starving producer threads on a full consumer.
func (c *Consumer) Publish(e Event) {
	c.queue <- e
}

// ResultRecorded signals after an InjectionLog has been correlated and
// flushed, matching the GetOutput state's wait on the "result_recorded"
// event before advancing injections_done.
func (c *Consumer) ResultRecorded() <-chan struct{} {
	return c.resultRecorded
}

// Run drains the queue until an EventQueueStop event, writing `[` once
// at the start of the JSON array and `]` once at the end. It is meant
// to run in its own goroutine, started by the campaign orchestrator
// alongside the debugger send/receive goroutines.
func (c *Consumer) Run() error {
	if _, err := c.jsonOut.WriteString(c.elfPath + "\n[\n"); err != nil {
		return fmt.Errorf("eventlog: write json header: %w", err)
	}
	for e := range c.queue {
		switch e.Kind {
		case EventQueueStop:
			if _, err := c.jsonOut.WriteString("]\n"); err != nil {
				return fmt.Errorf("eventlog: write json footer: %w", err)
			}
			return c.jsonOut.Flush()
		case EventOutcome:
			c.handleOutcome(e.Outcome)
		case EventInjectionLog:
			if err := c.correlateAndWrite(e.Log); err != nil {
				return err
			}
		case EventLogMessage:
			fmt.Fprintf(c.textOut, "[%s] %s\n", e.Source, e.Message)
		case EventDiscardUART:
			c.mu.Lock()
			c.pending = nil
			c.mu.Unlock()
		case EventUnderTime:
			c.mu.Lock()
			c.underTimeRun++
			if c.underTimeRun >= 5 && !c.suppressed {
				c.suppressed = true
				fmt.Fprintln(c.textOut, "truncating output")
			}
			c.mu.Unlock()
		case EventNormalTime:
			c.mu.Lock()
			c.underTimeRun = 0
			c.suppressed = false
			c.mu.Unlock()
		}
	}
	return nil
}

// handleOutcome applies the under-time coercion and the
// Abort/StackOverflow-beats-Timeout precedence rule before recording
// the pending outcome for the next InjectionLog to correlate with.
func (c *Consumer) handleOutcome(o model.Outcome) {
	if run, ok := o.(model.RunOutcome); ok && c.baseline > 0 {
		switch {
		case run.Runtime < 0.10*c.baseline:
			run.Errors = 1
		case run.Runtime > 20*c.baseline:
			run.Errors = 1
		}
		o = run
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suppressed {
		return
	}
	switch c.pending.(type) {
	case model.AbortOutcome, model.StackOverflowOutcome:
		if _, isTimeout := o.(model.TimeoutOutcome); isTimeout {
			return // specific abort signature wins over a later timeout
		}
	}
	c.pending = o
}

// correlateAndWrite attaches the most recently pending outcome to log
// (when none is pending, the publisher's own Result is kept), writes
// both to the text and JSON logs, signals result_recorded, and clears
// the pending outcome.
func (c *Consumer) correlateAndWrite(entry model.InjectionLog) error {
	c.mu.Lock()
	if c.pending != nil {
		entry.Result = c.pending
	}
	c.pending = nil
	c.mu.Unlock()

	fmt.Fprintln(c.textOut, entry.Number, entry.Address, entry.OldValue, entry.NewValue)
	if entry.Result != nil {
		fmt.Fprintln(c.textOut, entry.Result.String())
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("eventlog: marshal injection log: %w", err)
	}
	prefix := ""
	if c.wroteFirstLog {
		prefix = ",\n"
	}
	c.wroteFirstLog = true
	if _, err := c.jsonOut.WriteString(prefix + string(b)); err != nil {
		return fmt.Errorf("eventlog: write injection log: %w", err)
	}
	if err := c.jsonOut.Flush(); err != nil {
		return fmt.Errorf("eventlog: flush json: %w", err)
	}

	select {
	case c.resultRecorded <- struct{}{}:
	default:
	}
	return nil
}

// Stop enqueues the sentinel that ends Run's loop; the queue channel
// itself is not closed.
func (c *Consumer) Stop() {
	c.queue <- Event{Kind: EventQueueStop}
}
