// Command coast-agent is the debugger-side agent process spawned by
// coastctl: it attaches GDB to the running emulator, installs the
// pre/post-workload breakpoints, and serves coastctl's framed-socket
// command protocol (internal/debugagent) on its Python-facing listen
// port.
//
// Its command-line shape is fixed by the original tool's gdbClient.py:
// four positionals (board, source-dir, gdb-port, python-port) followed
// by the -n/-b/-c flags, which is why argument parsing here is manual
// rather than a single flag.FlagSet pass over os.Args[1:].
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/byuccl/coast/internal/boards"
	"github.com/byuccl/coast/internal/debugagent"
)

func main() {
	if err := run(); err != nil {
		slog.Error("coast-agent: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	args, err := parseArgs(os.Args[1:])
	if err != nil {
		return err
	}

	board, err := boards.Lookup(args.board)
	if err != nil {
		return err
	}

	elfPath, err := resolveSourceFile(args.sourceDir)
	if err != nil {
		return err
	}

	gdbPath := os.Getenv("COAST_GDB_PATH")
	if gdbPath == "" {
		gdbPath = "gdb-multiarch"
	}

	agent := debugagent.New(board, gdbPath, elfPath, args.gdbPort, logger)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", args.pythonPort))
	if err != nil {
		return fmt.Errorf("coast-agent: listen on python port %d: %w", args.pythonPort, err)
	}
	defer ln.Close()

	logger.Info("coast-agent: serving", "board", args.board, "elf", elfPath, "gdbPort", args.gdbPort, "pythonPort", args.pythonPort)
	return agent.Serve(ln)
}

// agentArgs is the resolved command line per gdbClient.py's argparse
// definitions: board, source-dir, gdb-port, python-port, then
// --num-injections/-n, --start-num/-b, --debug-commands/-c.
type agentArgs struct {
	board      string
	sourceDir  string
	gdbPort    int
	pythonPort int
	numInjects int
	startNum   int
	debugCmds  bool
}

func parseArgs(argv []string) (agentArgs, error) {
	if len(argv) < 4 {
		return agentArgs{}, fmt.Errorf("coast-agent: usage: coast-agent <board> <source-dir> <gdb-port> <python-port> [-n num] [-b start] [-c]")
	}
	gdbPort, err := strconv.Atoi(argv[2])
	if err != nil {
		return agentArgs{}, fmt.Errorf("coast-agent: invalid gdb-port %q: %w", argv[2], err)
	}
	pythonPort, err := strconv.Atoi(argv[3])
	if err != nil {
		return agentArgs{}, fmt.Errorf("coast-agent: invalid python-port %q: %w", argv[3], err)
	}

	a := agentArgs{
		board:      argv[0],
		sourceDir:  argv[1],
		gdbPort:    gdbPort,
		pythonPort: pythonPort,
		numInjects: 2,
		startNum:   0,
	}

	rest := argv[4:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-n", "--num-injections":
			if i+1 >= len(rest) {
				return agentArgs{}, fmt.Errorf("coast-agent: %s requires a value", rest[i])
			}
			i++
			n, err := strconv.Atoi(rest[i])
			if err != nil {
				return agentArgs{}, fmt.Errorf("coast-agent: invalid %s value %q: %w", "-n", rest[i], err)
			}
			a.numInjects = n
		case "-b", "--start-num":
			if i+1 >= len(rest) {
				return agentArgs{}, fmt.Errorf("coast-agent: %s requires a value", rest[i])
			}
			i++
			n, err := strconv.Atoi(rest[i])
			if err != nil {
				return agentArgs{}, fmt.Errorf("coast-agent: invalid %s value %q: %w", "-b", rest[i], err)
			}
			a.startNum = n
		case "-c", "--debug-commands":
			a.debugCmds = true
		default:
			return agentArgs{}, fmt.Errorf("coast-agent: unrecognized flag %q", rest[i])
		}
	}
	return a, nil
}

// resolveSourceFile picks the single regular file inside dir, matching
// gdbClient.py's "directory containing source file" convention (the
// original tool resolved this via an out-of-scope benchmark table
// instead; a directory with exactly one file needs no such table).
func resolveSourceFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("coast-agent: read source-dir %s: %w", dir, err)
	}
	var found string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("coast-agent: source-dir %s contains more than one file", dir)
		}
		found = e.Name()
	}
	if found == "" {
		return "", fmt.Errorf("coast-agent: source-dir %s contains no files", dir)
	}
	return dir + string(os.PathSeparator) + found, nil
}
