// Package campaign implements the campaign orchestrator (component
// F): the per-injection state machine, baseline measurement, bounds
// adaptation, and restart semantics that drive the emulator process
// wrapper (internal/emuproc), the debugger agent client
// (internal/debugagent), the fault injector (internal/inject), and the
// event log (internal/eventlog) through one fault-injection campaign.
//
// Grounded on spec.md §4.F and
// original_source/resources/threadFunctions.py's gdbCommunicator (the
// largest single grounding source in the repo) and supervisor.py's
// Supervisor.start/stop/restart. The goroutine fan-out for the
// send/receive/decoder/consumer threads spec.md §5 describes uses
// golang.org/x/sync/errgroup, the idiom the teacher's own indirect
// dependency graph (and lcalzada-xor-wmap) already reaches for instead
// of raw sync.WaitGroup.
package campaign

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/trace"

	"github.com/byuccl/coast/internal/boards"
	"github.com/byuccl/coast/internal/clock"
	"github.com/byuccl/coast/internal/debugagent"
	"github.com/byuccl/coast/internal/decode"
	"github.com/byuccl/coast/internal/emuproc"
	"github.com/byuccl/coast/internal/eventlog"
	"github.com/byuccl/coast/internal/inject"
	"github.com/byuccl/coast/internal/model"
	"github.com/byuccl/coast/internal/statusapi"
	"github.com/byuccl/coast/internal/telemetry"
)

// State is one node of the per-injection state machine.
type State int

const (
	StateInjectFault State = iota
	StateGetOutput
	StateTimeout
	StateReset
	StateDead
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInjectFault:
		return "InjectFault"
	case StateGetOutput:
		return "GetOutput"
	case StateTimeout:
		return "Timeout"
	case StateReset:
		return "Reset"
	case StateDead:
		return "Dead"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Config is the campaign's fixed, per-run configuration (spec.md §6's
// CLI surface, as resolved by internal/config).
type Config struct {
	Section       string
	PluginMode    bool
	ErrorTarget   int
	MaxInjections int
	Seed          int64

	// BreakSleep is the -z/--breakSleep override: when a forced
	// injection's iteration matches the current serial, sleep_time
	// comes from here instead of the bounds table. Zero means "no
	// override", i.e. fall through to the scripted target/value only.
	BreakSleep float64
}

// Campaign is the live orchestrator for one campaign run.
type Campaign struct {
	cfg      Config
	board    boards.Board
	client   *debugagent.Client
	proc     *emuproc.Process
	injector *inject.Injector
	events   *eventlog.Consumer
	logger   *slog.Logger
	rand     *rand.Rand
	metrics  *telemetry.Metrics
	status   *statusapi.Server

	ctx      context.Context
	iterSpan trace.Span

	bounds   model.BoundsState
	counters model.CampaignCounters

	baselineRuntime float64
	startCycle      uint64
	cyclePeriod     uint64
	maxUARTWait     time.Duration
	maxOutputTime   time.Duration

	serial      int
	normalReset bool
	pendingLog  *model.InjectionLog

	outcomeCh chan decode.DecodedLine
	agentEvCh chan string

	currentState State
}

// New builds a Campaign; Run measures the baseline (via initialize) and
// drives the state machine from there. metrics
// may be nil, in which case injection/outcome telemetry is skipped.
func New(cfg Config, board boards.Board, client *debugagent.Client, proc *emuproc.Process, injector *inject.Injector, events *eventlog.Consumer, metrics *telemetry.Metrics, logger *slog.Logger) *Campaign {
	if logger == nil {
		logger = slog.Default()
	}
	return &Campaign{
		cfg:       cfg,
		board:     board,
		client:    client,
		proc:      proc,
		injector:  injector,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		counters:  model.CampaignCounters{MaxInjections: cfg.MaxInjections, ErrorTarget: cfg.ErrorTarget},
		outcomeCh: make(chan decode.DecodedLine, 64),
		agentEvCh: make(chan string, 64),
	}
}

// Run drives the campaign to completion: starts the listener
// goroutines and the event-log consumer (spec.md §5's thread model),
// measures the baseline, then loops the state machine until Finished
// or a fatal error.
func (c *Campaign) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	c.ctx = ctx

	g.Go(func() error { return c.events.Run() })
	g.Go(func() error { return c.stdoutListener(ctx) })
	g.Go(func() error { return c.agentEventListener(ctx) })

	runErr := make(chan error, 1)
	g.Go(func() error {
		err := c.runStateMachine(ctx)
		runErr <- err
		c.events.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("campaign: %w", err)
	}
	return <-runErr
}

func (c *Campaign) stdoutListener(ctx context.Context) error {
	sc := bufio.NewScanner(c.proc.Stdout())
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		d := decode.GuestLine(sc.Text())
		switch d.Kind {
		case decode.KindOutcome:
			c.events.Publish(eventlog.Event{Kind: eventlog.EventOutcome, Outcome: d.Outcome})
			select {
			case c.outcomeCh <- d:
			case <-ctx.Done():
				return nil
			}
		case decode.KindInfo, decode.KindError:
			c.events.Publish(eventlog.Event{Kind: eventlog.EventLogMessage, Source: "emulator", Message: d.Text})
		}
	}
	return nil
}

func (c *Campaign) agentEventListener(ctx context.Context) error {
	for {
		line, err := c.client.RecvEvent()
		if err != nil {
			return nil // connection torn down on restart; not fatal to the group
		}
		if forward, ok := decode.DebuggerLine(line); ok {
			c.events.Publish(eventlog.Event{Kind: eventlog.EventLogMessage, Source: "debugger", Message: forward})
		}
		select {
		case c.agentEvCh <- line:
		case <-ctx.Done():
			return nil
		}
	}
}

// runStateMachine executes spec.md §4.F's initialization sequence then
// loops states until Finished.
func (c *Campaign) runStateMachine(ctx context.Context) error {
	if err := c.initialize(); err != nil {
		return err
	}

	state := StateInjectFault
	if c.cfg.PluginMode {
		state = StateReset
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.currentState = state
		switch state {
		case StateInjectFault:
			state = c.stateInjectFault()
		case StateGetOutput:
			state = c.stateGetOutput()
		case StateTimeout:
			state = c.stateTimeout()
		case StateReset:
			state = c.stateDead(false)
		case StateDead:
			state = c.stateDead(true)
		case StateFinished:
			return nil
		}
	}
}

// initialize measures the baseline cycles-per-workload-pass by running
// to breakpoint #1 twice, deriving the watchdog timeout and bounds
// table per spec.md §4.F step 2-4.
func (c *Campaign) initialize() error {
	if err := c.client.ConfigureGDB(); err != nil {
		return fmt.Errorf("campaign: configure_gdb: %w", err)
	}
	if err := c.client.SetupHandlers(); err != nil {
		return fmt.Errorf("campaign: setup_handlers: %w", err)
	}

	if err := c.client.Continue(); err != nil {
		return err
	}
	c.waitForBreakpoint()
	start, err := c.client.ReadGlobalTimer()
	if err != nil {
		return fmt.Errorf("campaign: read baseline start timer: %w", err)
	}

	if err := c.client.Continue(); err != nil {
		return err
	}
	c.waitForBreakpoint()
	end, err := c.client.ReadGlobalTimer()
	if err != nil {
		return fmt.Errorf("campaign: read baseline end timer: %w", err)
	}

	c.cyclePeriod = end - start
	runtimeSeconds := float64(c.cyclePeriod) / 1e9 // timer ticks at ns resolution on pynq
	if runtimeSeconds <= 0 {
		runtimeSeconds = 0.001
	}
	c.baselineRuntime = runtimeSeconds

	if err := c.client.SetTimeout(runtimeSeconds); err != nil {
		return fmt.Errorf("campaign: set_timeout: %w", err)
	}
	c.maxUARTWait = time.Duration(max64(3*runtimeSeconds, 1.0) * float64(time.Second))
	c.maxOutputTime = time.Duration(20 * runtimeSeconds * float64(time.Second))
	c.bounds = model.NewBoundsState(2*runtimeSeconds, 0.001, 30)
	return nil
}

// SetStatusServer attaches the optional status/metrics/feed server;
// once set, every published InjectionLog is also broadcast to /feed
// subscribers.
func (c *Campaign) SetStatusServer(s *statusapi.Server) { c.status = s }

// Snapshot implements statusapi.Provider for GET /status.
func (c *Campaign) Snapshot() statusapi.Snapshot {
	snap := statusapi.Snapshot{
		State:          c.currentState.String(),
		InjectionsDone: c.counters.InjectionsDone,
		MaxInjections:  c.counters.MaxInjections,
		ErrorsSeen:     c.counters.ErrorsSeen,
		ErrorTarget:    c.counters.ErrorTarget,
	}
	if len(c.bounds.StepSpace) > 0 {
		snap.BoundsUpper = c.bounds.Upper()
		snap.BoundsLower = c.bounds.Lower()
	}
	return snap
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// waitForBreakpoint drains agent events until a breakpoint
// notification, tolerating interleaved noise per spec.md §4.F.
func (c *Campaign) waitForBreakpoint() {
	for ev := range c.agentEvCh {
		if ev == "hit breakpoint" {
			<-c.agentEvCh // the location string
			return
		}
	}
}

// stateInjectFault implements spec.md §4.F's InjectFault state: step 1
// (drain residual outcomes) and step 2 (choose sleep_time) are shared,
// then control forks to the non-plugin or plugin branch for steps 3-5.
func (c *Campaign) stateInjectFault() State {
	c.drainResidualOutcomes()

	_, c.iterSpan = telemetry.StartInjectionSpan(c.ctx, c.serial, c.cfg.Section)
	spanOpen := true
	defer func() {
		if spanOpen {
			telemetry.EndInjectionSpan(c.iterSpan, 0, 0, nil)
		}
	}()

	sleepTime := c.chooseSleepTime()
	if c.cfg.PluginMode {
		return c.stateInjectFaultPlugin(sleepTime, &spanOpen)
	}
	return c.stateInjectFaultNonPlugin(sleepTime, &spanOpen)
}

// stateInjectFaultNonPlugin implements spec.md §4.F step 3: reload to
// breakpoint #1, sleep sleep_time between the pre- and post-workload
// global-timer reads, detect overshoot/zero-cycle conditions and adapt
// bounds, then inject against the real debugger and cache links.
func (c *Campaign) stateInjectFaultNonPlugin(sleepTime float64, spanOpen *bool) State {
	if err := c.client.Reload(); err != nil {
		c.logger.Warn("reload failed", "error", err)
		return StateReset
	}
	if err := c.client.Continue(); err != nil {
		return StateReset
	}
	ev := <-c.agentEvCh
	switch ev {
	case "hit breakpoint":
		<-c.agentEvCh // location
	case "Timeout detected":
		return StateReset
	default:
		return StateReset
	}

	preTimer, err := c.client.ReadGlobalTimer()
	if err != nil {
		c.logger.Warn("read pre-workload timer failed", "error", err)
		return StateReset
	}

	if err := c.client.Continue(); err != nil {
		return StateReset
	}
	clock.SleepSeconds(sleepTime)

	if _, err := c.client.Interrupt(); err != nil {
		return StateReset
	}

	stopEv := <-c.agentEvCh
	if stopEv == "hit breakpoint" {
		<-c.agentEvCh // overshoot into post-workload breakpoint
		nErrors, _ := c.client.GetVar("nErrors")
		if nErrors == "0" {
			c.bounds = c.bounds.ChangeBounds(true)
			return StateInjectFault
		}
	}

	postTimer, err := c.client.ReadGlobalTimer()
	if err != nil {
		c.logger.Warn("read post-workload timer failed", "error", err)
		return StateReset
	}
	cycles := postTimer - preTimer
	if cycles == 0 {
		c.bounds = c.bounds.ChangeBounds(false)
		return StateInjectFault
	}
	pc, _ := c.client.ReadRegister("pc")

	log, err := c.injector.Inject(c.serial, c.cfg.Section, c.client, &pluginCacheLink{c.proc})
	if err != nil {
		c.logger.Warn("injection failed", "error", err)
		if c.metrics != nil && errors.Is(err, model.ErrInvalidRange) {
			c.metrics.RecordInvalidRange()
		}
		return StateInjectFault
	}
	log.AddInjectionInfo(sleepTime, cycles, pc)
	c.pendingLog = &log
	if c.metrics != nil {
		c.metrics.RecordInjection(c.cfg.Section, sleepTime, cycles)
	}

	if err := c.client.Continue(); err != nil {
		return StateReset
	}
	*spanOpen = false // the span now carries through to stateGetOutput/stateTimeout
	return StateGetOutput
}

// stateInjectFaultPlugin implements spec.md §4.F step 4: the
// plugin-driven iteration used by boards (pynq by default) where the
// co-process halts the target at a programmed cycle instead of the
// debugger's sleep/interrupt dance, then hands back the actual cycle
// count alongside the cache-word selection Inject needs.
func (c *Campaign) stateInjectFaultPlugin(sleepTime float64, spanOpen *bool) State {
	if err := c.proc.SendPlugin([]byte(fmt.Sprintf("run %d", int64(sleepTime)))); err != nil {
		c.logger.Warn("plugin run request failed", "error", err)
		return StateReset
	}
	if err := c.client.Continue(); err != nil {
		return StateReset
	}

	ack, err := c.pluginSync()
	if err != nil {
		// Socket-timeout (or any handshake failure) on the plugin
		// channel means "ran too long" per spec.md step 4: discard
		// this iteration and try again rather than resetting.
		c.logger.Warn("plugin handshake failed, discarding iteration", "error", err)
		return StateInjectFault
	}
	actualCycles, err := parsePluginAck(ack)
	if err != nil {
		c.logger.Warn("plugin sent malformed ack", "error", err)
		return StateInjectFault
	}

	pc, _ := c.client.ReadRegister("pc")

	log, err := c.injector.Inject(c.serial, c.cfg.Section, c.client, &pluginCacheLink{c.proc})
	if err != nil {
		c.logger.Warn("injection failed", "error", err)
		if c.metrics != nil && errors.Is(err, model.ErrInvalidRange) {
			c.metrics.RecordInvalidRange()
		}
		return StateInjectFault
	}
	log.AddInjectionInfo(sleepTime, actualCycles, pc)
	c.pendingLog = &log
	if c.metrics != nil {
		c.metrics.RecordInjection(c.cfg.Section, sleepTime, actualCycles)
	}

	if err := c.client.Continue(); err != nil {
		return StateReset
	}
	*spanOpen = false
	return StateGetOutput
}

// pluginSync waits for the plugin channel's halt acknowledgement,
// tolerating an interleaved debugger breakpoint event (acknowledged
// and discarded) without losing the pending plugin read, per spec.md
// step 4's "acknowledge it and retry the read" handshake rule.
func (c *Campaign) pluginSync() ([]byte, error) {
	type pluginResult struct {
		msg []byte
		err error
	}
	done := make(chan pluginResult, 1)
	go func() {
		msg, err := c.proc.RecvPlugin()
		done <- pluginResult{msg, err}
	}()

	for {
		select {
		case r := <-done:
			return r.msg, r.err
		case ev := <-c.agentEvCh:
			if ev == "hit breakpoint" {
				<-c.agentEvCh // location; acknowledged, keep waiting on the plugin
			}
		case <-time.After(c.maxUARTWait):
			return nil, fmt.Errorf("campaign: plugin channel recv timed out")
		}
	}
}

// parsePluginAck parses the plugin's halt notification, "ack
// <actual_cycles>".
func parsePluginAck(msg []byte) (uint64, error) {
	fields := strings.Fields(string(msg))
	if len(fields) != 2 || fields[0] != "ack" {
		return 0, fmt.Errorf("campaign: malformed plugin ack %q", msg)
	}
	cycles, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("campaign: malformed plugin cycle count %q: %w", fields[1], err)
	}
	return cycles, nil
}

// pluginCacheLink adapts the emulator's plugin channel (component B)
// to inject.CacheLink, so cache-section fault selection asks the
// co-process which tag-RAM word to target instead of being handed a
// nil link. Safe to use with no plugin attached: SendPlugin/RecvPlugin
// return a plain error in that case, which selectTarget already turns
// into an InvalidOutcome target rather than a panic.
type pluginCacheLink struct {
	proc *emuproc.Process
}

func (l *pluginCacheLink) RequestCacheWord(cacheName string) (row, block, word int, validBit bool, err error) {
	if err := l.proc.SendPlugin([]byte("cache " + cacheName)); err != nil {
		return 0, 0, 0, false, fmt.Errorf("campaign: request cache word: %w", err)
	}
	msg, err := l.proc.RecvPlugin()
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("campaign: receive cache word: %w", err)
	}
	fields := strings.Fields(string(msg))
	if len(fields) != 5 || fields[0] != "word" {
		return 0, 0, 0, false, fmt.Errorf("campaign: malformed cache word reply %q", msg)
	}
	row, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("campaign: malformed cache row %q", fields[1])
	}
	block, err = strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("campaign: malformed cache block %q", fields[2])
	}
	word, err = strconv.Atoi(fields[3])
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("campaign: malformed cache word index %q", fields[3])
	}
	return row, block, word, fields[4] == "1", nil
}

// chooseSleepTime implements spec.md §4.F step 2's three-tier
// selection: a forced iteration match wins outright, plugin mode draws
// a uniform cycle count, and otherwise sleep_time is a uniform real
// between the current bounds.
func (c *Campaign) chooseSleepTime() float64 {
	if c.injector != nil && c.cfg.BreakSleep > 0 {
		for _, f := range c.injector.Forced {
			if f.MatchesIteration(c.serial) {
				return c.cfg.BreakSleep
			}
		}
	}
	if c.cfg.PluginMode {
		lower := float64(c.startCycle)
		upper := 0.95 * float64(c.cyclePeriod)
		if upper <= lower {
			return lower
		}
		return lower + float64(c.rand.Int63n(int64(upper-lower)+1))
	}
	upper, lower := c.bounds.Upper(), c.bounds.Lower()
	return lower + c.rand.Float64()*(upper-lower)
}

func (c *Campaign) drainResidualOutcomes() {
	for {
		select {
		case <-c.outcomeCh:
		default:
			return
		}
	}
}

// stateGetOutput implements spec.md §4.F's GetOutput state: waits for
// the stop event and decoded outcome, tallies errors, publishes the
// InjectionLog and then waits (up to one second) for the event log to
// record it, and decides whether the campaign is finished.
func (c *Campaign) stateGetOutput() State {
	select {
	case ev := <-c.agentEvCh:
		switch ev {
		case "Timeout detected":
			return StateTimeout
		case "GDB died!":
			c.closeSpanIfOpen()
			return StateDead
		}
	case <-time.After(c.maxUARTWait):
		return StateTimeout
	}

	var outcome model.Outcome
	select {
	case d := <-c.outcomeCh:
		outcome = d.Outcome
	case <-time.After(c.maxUARTWait):
		return StateTimeout
	}

	if run, ok := outcome.(model.RunOutcome); ok {
		if run.Runtime > c.maxOutputTime.Seconds() {
			run.Errors = 1
			outcome = run
		}
	}
	c.counters.ErrorsSeen += model.OutcomeErrors(outcome)
	if c.metrics != nil {
		c.metrics.RecordOutcome(outcomeKind(outcome))
	}
	if c.iterSpan != nil {
		var sleepTime float64
		var cycles uint64
		if c.pendingLog != nil {
			sleepTime, cycles = c.pendingLog.SleepTime, c.pendingLog.Cycles
		}
		telemetry.EndInjectionSpan(c.iterSpan, sleepTime, cycles, nil)
		c.iterSpan = nil
	}

	if c.pendingLog != nil {
		c.pendingLog.AddResult(outcome)
		c.events.Publish(eventlog.Event{Kind: eventlog.EventInjectionLog, Log: *c.pendingLog})
		if c.status != nil {
			c.status.Broadcast(*c.pendingLog)
		}
		select {
		case <-c.events.ResultRecorded():
		case <-time.After(time.Second):
		}
		c.pendingLog = nil
	}
	c.counters.InjectionsDone++
	c.serial++

	if c.counters.IsCampaignFinished() {
		return StateFinished
	}
	return StateReset
}

// closeSpanIfOpen ends the current injection-iteration span without a
// recorded outcome, used on the abnormal "GDB died!" exit from
// GetOutput where no outcome is ever decoded.
func (c *Campaign) closeSpanIfOpen() {
	if c.iterSpan != nil {
		telemetry.EndInjectionSpan(c.iterSpan, 0, 0, fmt.Errorf("campaign: debugger agent died"))
		c.iterSpan = nil
	}
}

// outcomeKind names an outcome's discriminator for metrics labeling.
func outcomeKind(o model.Outcome) string {
	switch o.(type) {
	case model.RunOutcome:
		return "run"
	case model.AssertionFailOutcome:
		return "assertion_fail"
	case model.AbortOutcome:
		return "abort"
	case model.StackOverflowOutcome:
		return "stack_overflow"
	case model.TimeoutOutcome:
		return "timeout"
	case model.InvalidOutcome:
		return "invalid"
	default:
		return "unknown"
	}
}

// stateTimeout implements spec.md §4.F's Timeout state.
func (c *Campaign) stateTimeout() State {
	_, _ = c.client.Interrupt()
	clock.SleepSeconds(0.01)
	pc, _ := c.client.ReadRegister("pc")

	outcome := model.NewTimeoutOutcome(clock.Now(), "Timeout detected", false, pc)
	c.events.Publish(eventlog.Event{Kind: eventlog.EventOutcome, Outcome: outcome})
	if c.metrics != nil {
		c.metrics.RecordOutcome(outcomeKind(outcome))
	}
	if c.iterSpan != nil {
		var sleepTime float64
		var cycles uint64
		if c.pendingLog != nil {
			sleepTime, cycles = c.pendingLog.SleepTime, c.pendingLog.Cycles
		}
		telemetry.EndInjectionSpan(c.iterSpan, sleepTime, cycles, nil)
		c.iterSpan = nil
	}
	if c.pendingLog != nil {
		c.pendingLog.AddResult(outcome)
		c.events.Publish(eventlog.Event{Kind: eventlog.EventInjectionLog, Log: *c.pendingLog})
		if c.status != nil {
			c.status.Broadcast(*c.pendingLog)
		}
		c.pendingLog = nil
	}
	c.counters.InjectionsDone++
	c.serial++

	if c.counters.IsCampaignFinished() {
		return StateFinished
	}
	return StateReset
}

// stateDead implements spec.md §4.F's Reset/Dead states: kill the
// agent, restart the emulator (hard on abnormal reset), rewire
// sockets, and re-arm the watchdog before returning to InjectFault.
func (c *Campaign) stateDead(abnormal bool) State {
	_ = c.client.Kill()
	_ = c.proc.Stop(abnormal)

	if err := c.proc.Start(emuproc.StartOptions{UsePlugin: c.cfg.PluginMode}); err != nil {
		c.logger.Error("restart failed", "error", err)
		return StateFinished
	}
	if err := c.client.SetupHandlers(); err != nil {
		c.logger.Warn("setup_handlers after restart failed", "error", err)
	}
	if err := c.client.SetTimeout(c.baselineRuntime); err != nil {
		c.logger.Warn("set_timeout after restart failed", "error", err)
	}
	c.normalReset = !abnormal
	return StateInjectFault
}
