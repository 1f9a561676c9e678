// Command coastctl is the campaign orchestrator entrypoint: it
// resolves configuration (internal/config), reserves a port range,
// spawns the emulator (internal/emuproc) and the debugger agent
// subprocess (cmd/coast-agent), wires the fault injector
// (internal/inject), the event log (internal/eventlog), and runs the
// campaign state machine (internal/campaign) to completion.
//
// Grounded on the teacher's cmd/api/main.go: component construction in
// dependency order, slog throughout, signal.Notify-driven graceful
// shutdown via a cancelable context.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/byuccl/coast/internal/boards"
	"github.com/byuccl/coast/internal/campaign"
	"github.com/byuccl/coast/internal/config"
	"github.com/byuccl/coast/internal/debugagent"
	"github.com/byuccl/coast/internal/emuproc"
	"github.com/byuccl/coast/internal/eventlog"
	"github.com/byuccl/coast/internal/inject"
	"github.com/byuccl/coast/internal/model"
	"github.com/byuccl/coast/internal/statusapi"
	"github.com/byuccl/coast/internal/store"
	"github.com/byuccl/coast/internal/telemetry"
	"github.com/byuccl/coast/internal/transport"
)

// cliError marks a failure in the −1 "invalid CLI state" class spec.md
// §6's exit-code table names (missing file, port in use, unsupported
// board), distinct from an unrecoverable restart failure mid-run.
type cliError struct{ err error }

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func main() {
	if err := run(); err != nil {
		slog.Error("coastctl: fatal", "error", err)
		var ce *cliError
		if asCliError(err, &ce) {
			os.Exit(-1)
		}
		os.Exit(1)
	}
}

func asCliError(err error, target **cliError) bool {
	for err != nil {
		if ce, ok := err.(*cliError); ok {
			*target = ce
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func run() error {
	cfg, err := config.Load(os.Getenv("COAST_CONFIG_FILE"))
	if err != nil {
		return &cliError{err}
	}
	fs := flag.NewFlagSet("coastctl", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return &cliError{err}
	}
	if err := cfg.Validate(); err != nil {
		return &cliError{err}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: verbosityLevel(cfg.Verbosity)}))
	slog.SetDefault(logger)

	board, err := boards.Lookup(cfg.Board)
	if err != nil {
		return &cliError{err}
	}
	if boards.IsUnsupported(cfg.Board) {
		return &cliError{fmt.Errorf("coastctl: board %q has no working emulator backing", cfg.Board)}
	}

	ports := emuproc.Ports{
		GDB:    cfg.PortRangeBase,
		Mon:    cfg.PortRangeBase + 1,
		Debug:  cfg.PortRangeBase + 2,
		Python: cfg.PortRangeBase + 3,
		Plugin: cfg.PortRangeBase + 4,
	}
	if err := checkPortsFree(ports); err != nil {
		return &cliError{err}
	}

	forced, err := parseForcedInjections(cfg)
	if err != nil {
		return &cliError{err}
	}

	logDir := "."
	var textLog, jsonLog *os.File
	if !cfg.NoLogging {
		logDir = cfg.LogDir
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("coastctl: create log dir: %w", err)
		}
		base := filepath.Join(logDir, persistedBaseName(cfg.Board, cfg.Filename, time.Now()))
		if textLog, err = os.Create(base + ".log"); err != nil {
			return fmt.Errorf("coastctl: create text log: %w", err)
		}
		defer textLog.Close()
		if jsonLog, err = os.Create(base + ".json"); err != nil {
			return fmt.Errorf("coastctl: create json log: %w", err)
		}
		defer jsonLog.Close()
	} else {
		textLog, _ = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		jsonLog, _ = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		defer textLog.Close()
		defer jsonLog.Close()
	}

	memory, err := loadMemoryMap(cfg.Filename)
	if err != nil {
		return fmt.Errorf("coastctl: load ELF section table: %w", err)
	}
	registers := model.RegisterSetForBoard(cfg.Board).Registers

	agentCmd, err := spawnAgent(cfg, ports)
	if err != nil {
		return fmt.Errorf("coastctl: spawn debugger agent: %w", err)
	}
	defer func() {
		if agentCmd.Process != nil {
			_ = agentCmd.Process.Kill()
		}
		_ = agentCmd.Wait()
	}()

	conn, err := dialWithRetry(fmt.Sprintf("127.0.0.1:%d", ports.Python), 10, 300*time.Millisecond)
	if err != nil {
		return fmt.Errorf("coastctl: dial debugger agent: %w", err)
	}
	client := debugagent.NewClient(transport.NewConn(conn))

	// Plugin mode follows the board, not the chosen section: it is on
	// only for the pynq board with a plugin_so configured, and a cache
	// section picked without plugin mode is rejected here, before the
	// emulator starts.
	pluginBoard := board.Name == "pynq" && cfg.PluginSO != ""
	if isCacheSection(cfg.Section) && !pluginBoard {
		return &cliError{fmt.Errorf("coastctl: section %q requires the pynq board and a configured plugin (plugin_so/COAST_PLUGIN_SO)", cfg.Section)}
	}

	proc := emuproc.New(board, ports, logger)
	if err := proc.Start(emuproc.StartOptions{
		ELFPath:    cfg.Filename,
		MemoryMB:   cfg.MemoryMB,
		UsePlugin:  pluginBoard,
		PluginSO:   cfg.PluginSO,
		PluginHost: cfg.PluginHost,
		DoInject:   pluginBoard,
	}); err != nil {
		return fmt.Errorf("coastctl: start emulator: %w", err)
	}
	defer proc.Stop(true)

	injector := inject.New(registers, memory, board.Caches, board.Forbidden, forced, cfg.Seed)
	events := eventlog.NewConsumer(textLog, jsonLog, cfg.Filename, 0, logger)

	metrics := telemetry.NewMetrics()
	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		logger.Warn("coastctl: tracer init failed, continuing without spans", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	runStore, err := store.Open(filepath.Join(logDir, "coast.db"), logger)
	if err != nil {
		logger.Warn("coastctl: run index unavailable, continuing without it", "error", err)
	}
	var runID string
	if runStore != nil {
		runID, err = runStore.StartRun(store.RunParams{
			Board:         cfg.Board,
			Binary:        cfg.Filename,
			Section:       cfg.Section,
			Seed:          cfg.Seed,
			MaxInjections: cfg.Injections,
			ErrorTarget:   cfg.ErrorCount,
		})
		if err != nil {
			logger.Warn("coastctl: failed to record run start", "error", err)
		}
		defer runStore.Close()
	}

	camp := campaign.New(campaign.Config{
		Section:       cfg.Section,
		PluginMode:    pluginBoard,
		ErrorTarget:   cfg.ErrorCount,
		MaxInjections: cfg.Injections,
		Seed:          cfg.Seed,
		BreakSleep:    cfg.BreakSleep,
	}, board, client, proc, injector, events, metrics, logger)

	status := statusapi.NewServer(camp, metrics, logger)
	camp.SetStatusServer(status)
	statusSrv := &statusHTTPServer{addr: cfg.StatusAddr, handler: status.Handler()}
	statusSrv.start(logger)
	defer statusSrv.stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := camp.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = shutdownTracer(shutdownCtx)

	if runStore != nil && runID != "" {
		finalState := "Finished"
		if runErr != nil {
			finalState = "Dead"
		}
		snap := camp.Snapshot()
		closing := model.CampaignCounters{
			InjectionsDone: snap.InjectionsDone,
			ErrorsSeen:     snap.ErrorsSeen,
			MaxInjections:  snap.MaxInjections,
			ErrorTarget:    snap.ErrorTarget,
		}
		if err := runStore.FinishRun(runID, finalState, closing); err != nil {
			logger.Warn("coastctl: failed to record run finish", "error", err)
		}
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("coastctl: campaign failed: %w", runErr)
	}
	return nil
}

func verbosityLevel(v string) slog.Level {
	switch v {
	case "n":
		return slog.LevelError
	case "a", "i":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func isCacheSection(section string) bool {
	switch section {
	case "cache", "icache", "dcache", "l2cache":
		return true
	default:
		return false
	}
}

// persistedBaseName builds spec.md §6's `<board>_<benchmark>_<YYYY-MM-DD_HH-MM>`
// file stem.
func persistedBaseName(board, elfPath string, t time.Time) string {
	benchmark := strings.TrimSuffix(filepath.Base(elfPath), filepath.Ext(elfPath))
	return fmt.Sprintf("%s_%s_%s", board, benchmark, t.Format("2006-01-02_15-04"))
}

func parseForcedInjections(cfg *config.Config) ([]model.ForcedInjection, error) {
	if cfg.ForceBreak == "" {
		return nil, nil
	}
	target, value, err := inject.ParseForced(cfg.ForceBreak)
	if err != nil {
		return nil, err
	}
	iteration := model.AlwaysActive
	if cfg.BreakCount > 0 {
		iteration = cfg.BreakCount
	}
	return []model.ForcedInjection{{Iteration: iteration, Target: target, Value: value}}, nil
}

func checkPortsFree(p emuproc.Ports) error {
	for _, port := range []int{p.GDB, p.Mon, p.Python, p.Plugin} {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("coastctl: port %d unavailable: %w", port, err)
		}
		ln.Close()
	}
	return nil
}

func dialWithRetry(addr string, attempts int, backoff time.Duration) (net.Conn, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(backoff)
	}
	return nil, fmt.Errorf("coastctl: dial %s after %d attempts: %w", addr, attempts, lastErr)
}

// spawnAgent launches cmd/coast-agent with spec.md §6's exact
// positional argument shape, propagating the resolved GDB binary path
// via the environment since the CLI shape itself has no room for it.
func spawnAgent(cfg *config.Config, ports emuproc.Ports) (*exec.Cmd, error) {
	sourceDir := filepath.Dir(cfg.Filename)
	args := []string{
		cfg.Board,
		sourceDir,
		strconv.Itoa(ports.GDB),
		strconv.Itoa(ports.Python),
	}
	if cfg.Injections > 0 {
		args = append(args, "-n", strconv.Itoa(cfg.Injections))
	}
	if cfg.DebugCommands != "" {
		args = append(args, "-c")
	}

	binPath, err := exec.LookPath("coast-agent")
	if err != nil {
		return nil, fmt.Errorf("coast-agent not found on PATH: %w", err)
	}
	cmd := exec.Command(binPath, args...)
	cmd.Env = append(os.Environ(), "COAST_GDB_PATH="+cfg.GDBPath)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}
