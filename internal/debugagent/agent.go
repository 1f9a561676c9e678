// Package debugagent implements the debugger-side agent (component
// C): a child process launched by internal/emuproc that exposes
// spec.md §4.C's textual command protocol over a single TCP
// connection to the orchestrator, driving a real GDB subprocess over
// the Machine Interface (see mi.go). Also provides the
// orchestrator-side Client (client.go) that speaks the same protocol
// over internal/transport.
//
// Grounded on spec.md §4.C and original_source/gdbClient.py's command
// dispatch table, with the watchdog re-arm-on-continue behavior from
// resources/gdbHandlers.py.
package debugagent

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/byuccl/coast/internal/boards"
	"github.com/byuccl/coast/internal/transport"
)

// Agent runs inside the spawned debugger-agent process
// (cmd/coast-agent). It owns the MI session and the single TCP
// connection back to the orchestrator.
type Agent struct {
	board   boards.Board
	gdbPath string
	elfPath string
	gdbPort int
	mi      *miSession
	conn    *transport.Conn
	logger  *slog.Logger

	watchdogMu   sync.Mutex
	watchdog     *time.Timer
	timeout      time.Duration
	watchdogHit  atomic.Bool
	resetPC      uint32
	breakpointNo string
}

// New builds an Agent bound to a board's breakpoint table; Configure
// starts the underlying gdb subprocess.
func New(board boards.Board, gdbPath, elfPath string, gdbPort int, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{board: board, gdbPath: gdbPath, elfPath: elfPath, gdbPort: gdbPort, logger: logger}
}

// Serve accepts exactly one orchestrator connection on ln and runs the
// command dispatch loop until the connection closes or a quit/kill
// command is processed.
func (a *Agent) Serve(ln net.Listener) error {
	nc, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("debugagent: accept orchestrator: %w", err)
	}
	a.conn = transport.NewConn(nc)
	defer a.conn.Close()

	for {
		cmd, err := a.conn.RecvString()
		if err != nil {
			return fmt.Errorf("debugagent: recv command: %w", err)
		}
		done, err := a.dispatch(cmd)
		if err != nil {
			a.logger.Warn("command failed", "cmd", cmd, "error", err)
		}
		if done {
			return nil
		}
	}
}

// dispatch executes one command, per spec.md §4.C's table. Returns
// done=true after quit/kill/silent_kill, once the acknowledgement has
// been sent.
func (a *Agent) dispatch(cmd string) (done bool, err error) {
	switch cmd {
	case "configure_gdb":
		if err := a.configureGDB(); err != nil {
			return false, err
		}
		return false, a.conn.SendString("configuring GDB")

	case "silent_configure":
		return false, a.configureGDB()

	case "set_timeout":
		arg, err := a.conn.RecvString()
		if err != nil {
			return false, err
		}
		seconds, _ := strconv.ParseFloat(arg, 64)
		a.setTimeout(seconds)
		return false, a.conn.SendString("correctly set timeout")

	case "setup_handlers":
		go a.eventLoop()
		return false, a.conn.SendString("setting up GDB event handlers")

	case "interrupt":
		a.cancelWatchdog()
		if _, err := a.mi.command("-exec-interrupt"); err != nil {
			return false, err
		}
		return false, a.conn.SendString("hit stop handler")

	case "continue":
		_, err := a.mi.command("-exec-continue")
		return false, err

	case "reload":
		_, err := a.mi.command("-exec-run")
		return false, err

	case "read_reg":
		name, _ := a.conn.RecvString()
		val, err := a.readRegister(name)
		if err != nil {
			return false, err
		}
		return false, a.conn.SendString(fmt.Sprintf("0x%x", val))

	case "write_reg":
		name, _ := a.conn.RecvString()
		valStr, _ := a.conn.RecvString()
		val, _ := strconv.ParseUint(valStr, 0, 32)
		_, err := a.mi.command(fmt.Sprintf("-data-evaluate-expression \"$%s=%d\"", name, val))
		return false, err

	case "read_mem":
		addrStr, _ := a.conn.RecvString()
		val, err := a.readMemory(addrStr)
		if err != nil {
			return false, err
		}
		return false, a.conn.SendString(fmt.Sprintf("0x%x", val))

	case "write_mem":
		addrStr, _ := a.conn.RecvString()
		valStr, _ := a.conn.RecvString()
		_, err := a.mi.command(fmt.Sprintf("-data-write-memory-bytes %s %s", addrStr, valStr))
		return false, err

	case "reg_name", "mem_name":
		// Symbol lookup is optional (log-only per spec.md §4.E step 3);
		// without DWARF introspection wired up, report unresolved.
		_, _ = a.conn.RecvString()
		return false, a.conn.SendString("None")

	case "sym_addr":
		name, _ := a.conn.RecvString()
		out, err := a.mi.command(fmt.Sprintf("-data-evaluate-expression \"&%s\"", name))
		if err != nil {
			return false, a.conn.SendString("None")
		}
		return false, a.conn.SendString(out)

	case "read_global_timer":
		val, err := a.readGlobalTimer()
		if err != nil {
			return false, err
		}
		return false, a.conn.SendString(strconv.FormatUint(val, 10))

	case "get_var":
		name, _ := a.conn.RecvString()
		out, err := a.mi.command(fmt.Sprintf("-data-evaluate-expression %s", name))
		if err != nil {
			return false, err
		}
		return false, a.conn.SendString(out)

	case "exec":
		raw, _ := a.conn.RecvString()
		out, err := a.mi.command("-interpreter-exec console \"" + raw + "\"")
		if err != nil {
			return false, a.conn.SendString(err.Error())
		}
		return false, a.conn.SendString(out)

	case "quit", "kill":
		_ = a.conn.SendString("acknowledged")
		a.shutdown()
		return true, nil

	case "silent_kill":
		a.shutdown()
		return true, nil

	case "disconnect":
		_, err := a.mi.command("-target-disconnect")
		return false, err

	case "reconnect":
		_, err := a.mi.command(fmt.Sprintf("-target-select remote :%d", a.gdbPort))
		return false, err

	default:
		return false, a.conn.SendString("invalid command: " + cmd)
	}
}

// configureGDB starts the MI session, connects to the emulator's debug
// port, sets breakpoint #1 from the board table, and captures the
// reset PC.
func (a *Agent) configureGDB() error {
	mi, err := startMI(a.gdbPath, a.elfPath)
	if err != nil {
		return err
	}
	a.mi = mi
	if _, err := a.mi.command(fmt.Sprintf("-target-select remote :%d", a.gdbPort)); err != nil {
		return err
	}
	if _, err := a.mi.command(fmt.Sprintf("-break-insert %s", a.board.BreakpointLocation)); err != nil {
		return err
	}
	a.breakpointNo = "1"
	out, err := a.mi.command("-data-evaluate-expression $pc")
	if err != nil {
		return err
	}
	a.resetPC = parseHexPrefixed(out)
	return nil
}

func (a *Agent) setTimeout(seconds float64) {
	a.timeout = time.Duration(ceilDuration(seconds*1.2) * float64(time.Second))
}

func ceilDuration(seconds float64) float64 {
	i := float64(int64(seconds))
	if i < seconds {
		return i + 1
	}
	return i
}

// eventLoop replaces the "simple" stop handler with the full handler:
// on every continue it (re)arms the watchdog, and on a *stopped async
// record it emits "hit breakpoint"+location, "hit stop handler",
// "Timeout detected", "GDB died!" or "Finished" as appropriate.
func (a *Agent) eventLoop() {
	for async := range a.mi.asyncCh {
		switch async.Class {
		case "running":
			a.armWatchdog()
		case "stopped":
			a.cancelWatchdog()
			a.handleStop(async)
		}
	}
	_ = a.conn.SendString("GDB died!")
}

func (a *Agent) handleStop(async miAsync) {
	reason := async.Fields["reason"]
	switch reason {
	case "breakpoint-hit":
		_ = a.conn.SendString("hit breakpoint")
		_ = a.conn.SendString(a.board.BreakpointLocation)
	case "exited-normally", "exited":
		_ = a.conn.SendString("Finished")
	default:
		_ = a.conn.SendString("hit stop handler")
	}
}

func (a *Agent) armWatchdog() {
	a.watchdogMu.Lock()
	defer a.watchdogMu.Unlock()
	if a.timeout <= 0 {
		return
	}
	a.watchdog = time.AfterFunc(a.timeout, func() {
		a.watchdogHit.Store(true)
		_ = a.conn.SendString("Timeout detected")
	})
}

func (a *Agent) cancelWatchdog() {
	a.watchdogMu.Lock()
	defer a.watchdogMu.Unlock()
	if a.watchdog != nil {
		a.watchdog.Stop()
		a.watchdog = nil
	}
}

func (a *Agent) shutdown() {
	a.cancelWatchdog()
	if a.mi != nil {
		a.mi.close()
	}
}

func (a *Agent) readRegister(name string) (uint64, error) {
	out, err := a.mi.command(fmt.Sprintf("-data-evaluate-expression \"$%s\"", name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(stripQuotes(out), 0, 64)
}

func (a *Agent) readMemory(addrStr string) (uint64, error) {
	out, err := a.mi.command(fmt.Sprintf("-data-read-memory-bytes %s 4", addrStr))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(stripQuotes(out), 0, 64)
}

func (a *Agent) readGlobalTimer() (uint64, error) {
	out, err := a.mi.command("-data-evaluate-expression *(unsigned long long*)0xF8F00200")
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(stripQuotes(out), 0, 64)
}

func stripQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == ',' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func parseHexPrefixed(s string) uint32 {
	var v uint32
	_, _ = fmt.Sscanf(stripQuotes(s), "0x%x", &v)
	return v
}
