package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/1broseidon/tessera/internal/config"
	"github.com/1broseidon/tessera/internal/ipc"
	"github.com/1broseidon/tessera/internal/metrics"
	"github.com/1broseidon/tessera/internal/notify"
	"github.com/1broseidon/tessera/internal/runtimepath"
	"github.com/1broseidon/tessera/internal/wm"
	"github.com/1broseidon/tessera/internal/x11"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runWM(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "namespaces":
		os.Exit(runNamespaces(os.Args[2:]))
	case "violations":
		os.Exit(runViolations(os.Args[2:]))
	case "policy":
		os.Exit(runPolicy(os.Args[2:]))
	case "assign":
		os.Exit(runAssign(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tessera <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run                 Start the window manager on $DISPLAY (foreground)")
	fmt.Fprintln(w, "  status              Show window manager status")
	fmt.Fprintln(w, "  windows             List managed windows")
	fmt.Fprintln(w, "  namespaces          List isolation namespaces")
	fmt.Fprintln(w, "  violations          List denied cross-namespace operations")
	fmt.Fprintln(w, "  policy              Show or change namespace policy toggles")
	fmt.Fprintln(w, "  assign              Assign a window to a namespace")
	fmt.Fprintln(w, "  reload              Reload the configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config path         Print the configuration file path")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'tessera <command> --help' for command-specific options.")
}

// loadConfig reads path, or the default location when path is empty.
func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadFromPath(path)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func runWM(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessera run [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Become the window manager of $DISPLAY. SIGHUP reloads the config;")
		fmt.Fprintln(os.Stderr, "SIGINT and SIGTERM release every window and exit.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	path := fs.String("config", "", "Config file path (default: ~/.config/tessera/config.yaml)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := res.Config
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	met := metrics.New()
	conn, err := x11.NewConnection(logger.With("component", "x11"), met)
	if err != nil {
		log.Fatalf("Failed to connect to display: %v", err)
	}
	defer conn.Close()

	opts := wm.Options{
		Config:     cfg,
		ConfigPath: res.File,
		Logger:     logger,
		Metrics:    met,
	}
	if n, err := notify.New("tessera", logger.With("component", "notify")); err != nil {
		logger.Warn("desktop notifications unavailable", "error", err)
	} else {
		defer n.Close()
		opts.Warner = n
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = *path
	}

	m, err := wm.New(conn, opts)
	if err != nil {
		log.Fatalf("Failed to create window manager: %v", err)
	}
	if err := m.Start(); err != nil {
		if errors.Is(err, x11.ErrAnotherManager) {
			log.Fatalf("%v (is another window manager running?)", err)
		}
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if socket, err := runtimepath.SocketPath(); err != nil {
		logger.Warn("control socket disabled", "error", err)
	} else {
		srv := ipc.NewServer(socket, m.IPC(), logger.With("component", "ipc"))
		if err := srv.Start(); err != nil {
			logger.Warn("control socket disabled", "error", err)
		} else {
			defer srv.Stop()
		}
	}

	if addr := cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := met.Serve(ctx, addr, logger.With("component", "metrics")); err != nil {
				logger.Warn("metrics endpoint stopped", "error", err)
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				conn.Post(func() {
					if err := m.Reload(); err != nil {
						logger.Warn("config reload failed", "error", err)
					}
				})
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("event loop stopped", "error", err)
	}
	m.Stop()
	return 0
}
