// GDB/Machine-Interface session driver. Since GDB's Python scripting
// API (gdb.Breakpoint, gdb.events.stop, gdb.post_event) has no Go
// equivalent, the agent instead drives a real `gdb` subprocess over
// its text-based Machine Interface (`gdb -i=mi2`), translating
// spec.md §4.C's command table into MI command strings and its
// asynchronous records (`*stopped`, `^done`, `^error`) back into the
// event vocabulary the orchestrator expects. This redesign is invited
// by spec.md §9 ("re-architect [the event plumbing]... avoids any
// reliance on per-language event-dispatcher mechanics") and grounded
// on original_source/resources/gdbHandlers.py's event translation
// table and gdbCommands.py's command-string vocabulary.
package debugagent

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// miSession wraps one `gdb -i=mi2` child process.
type miSession struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	seq     atomic.Uint64
	mu      sync.Mutex // serializes command/response round-trips
	asyncCh chan miAsync
}

// miAsync is one asynchronous record (*stopped, =breakpoint-created,
// etc.) the reader goroutine pushes for the agent's event loop to
// consume independently of command/response round-trips.
type miAsync struct {
	Class  string // "stopped", "running", ...
	Fields map[string]string
}

func startMI(gdbPath, elfPath string) (*miSession, error) {
	cmd := exec.Command(gdbPath, "-q", "-i=mi2", "--args", elfPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("debugagent: gdb stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("debugagent: gdb stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("debugagent: start gdb: %w", err)
	}
	s := &miSession{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		asyncCh: make(chan miAsync, 32),
	}
	go s.readLoop()
	return s, nil
}

// readLoop demultiplexes MI output lines into the async channel; the
// synchronous result records (^done/^error/^running) are matched by
// command() directly off the same reader under the session mutex, so
// command() must be the only other reader — readLoop only forwards lines
// beginning with '*' or '=', never consuming '^' result records.
func (s *miSession) readLoop() {
	for {
		line, err := s.stdout.ReadString('\n')
		if err != nil {
			close(s.asyncCh)
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		switch line[0] {
		case '*', '=':
			s.asyncCh <- parseAsync(line)
		}
	}
}

// parseAsync extracts the record class and its comma-separated
// field=value pairs from one MI async-output line.
func parseAsync(line string) miAsync {
	body := line[1:]
	commaIdx := strings.IndexByte(body, ',')
	class := body
	rest := ""
	if commaIdx >= 0 {
		class = body[:commaIdx]
		rest = body[commaIdx+1:]
	}
	fields := map[string]string{}
	for _, part := range splitMIFields(rest) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			fields[kv[0]] = strings.Trim(kv[1], `"`)
		}
	}
	return miAsync{Class: class, Fields: fields}
}

// splitMIFields is a shallow comma split; nested braces in MI tuples
// are left intact within a field's value since the agent only reads a
// handful of top-level scalar fields (reason, bkptno, addr).
func splitMIFields(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// command sends one MI command and blocks for its synchronous result
// record, returning the raw remainder after ^done/^running/^error and
// an error if the record was ^error.
func (s *miSession) command(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.seq.Add(1)
	line := fmt.Sprintf("%d%s\n", token, cmd)
	if _, err := io.WriteString(s.stdin, line); err != nil {
		return "", fmt.Errorf("debugagent: write mi command: %w", err)
	}

	for {
		raw, err := s.stdout.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("debugagent: mi session closed: %w", err)
		}
		raw = strings.TrimRight(raw, "\r\n")
		if !strings.HasPrefix(raw, strconv.FormatUint(token, 10)) {
			continue // async record or console stream output; skip
		}
		body := strings.TrimPrefix(raw, strconv.FormatUint(token, 10))
		switch {
		case strings.HasPrefix(body, "^done"), strings.HasPrefix(body, "^running"):
			return strings.TrimPrefix(strings.TrimPrefix(body, "^done"), "^running"), nil
		case strings.HasPrefix(body, "^error"):
			return "", fmt.Errorf("debugagent: mi error: %s", body)
		}
	}
}

func (s *miSession) close() {
	_, _ = s.command("-gdb-exit")
	_ = s.stdin.Close()
	_ = s.cmd.Wait()
}
