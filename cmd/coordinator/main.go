package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dd0wney/cluso-coordinator/pkg/coordinator"
	"github.com/dd0wney/cluso-coordinator/pkg/health"
	"github.com/dd0wney/cluso-coordinator/pkg/logging"
	"github.com/dd0wney/cluso-coordinator/pkg/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML or TOML config file")
	rank := flag.Uint64("rank", 0, "0-based rank of this node")
	worldSize := flag.Uint64("world-size", 0, "number of nodes in the cluster")
	local := flag.String("local", "", "address peers reach this node at (tcp://host:port)")
	listen := flag.String("listen", "", "RPC listen address (default: -local)")
	seeds := flag.String("seeds", "", "comma-separated bootstrap addresses")
	metricsAddr := flag.String("metrics", "", "ops HTTP listen address, e.g. :9090")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	skipUnreachable := flag.Bool("skip-unreachable-seeds", false, "skip seeds that do not answer instead of failing")
	flag.Parse()

	cfg := coordinator.DefaultConfig()
	if *configPath != "" {
		loaded, err := coordinator.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rank":
			cfg.Rank = *rank
		case "world-size":
			cfg.WorldSize = *worldSize
		case "local":
			cfg.LocalAddress = *local
		case "listen":
			cfg.ListenAddress = *listen
		case "seeds":
			cfg.Seeds = splitList(*seeds)
		case "metrics":
			cfg.MetricsAddress = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "skip-unreachable-seeds":
			cfg.SkipUnreachableSeeds = *skipUnreachable
		}
	})

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewJSONLogger(os.Stderr, level)
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := coordinator.New(cfg, coordinator.WithLogger(logger))
	if err != nil {
		return err
	}
	cfg = node.Config()

	rpc, err := node.Serve()
	if err != nil {
		return fmt.Errorf("start rpc server on %s: %w", cfg.ListenAddress, err)
	}
	defer rpc.Stop()

	logger.Info("coordinator starting",
		logging.Rank(cfg.Rank),
		logging.Uint64("world_size", cfg.WorldSize),
		logging.Address(cfg.LocalAddress),
		logging.Count(len(cfg.Seeds)))

	result, err := node.Bootstrap(ctx, cfg.Seeds)
	if err != nil {
		return err
	}
	logger.Info("bootstrap complete",
		logging.Int("probed", result.Probed),
		logging.Int("registered", result.Registered),
		logging.Int("skipped", len(result.Skipped)))

	runErr := make(chan error, 1)
	go func() { runErr <- node.Run(ctx) }()

	opsErr := make(chan error, 1)
	if cfg.MetricsAddress != "" {
		hc := health.NewHealthChecker()
		node.RegisterHealthChecks(hc)
		handler := server.NewOpsHandler(node.Metrics(), hc, func() any { return node.Status() }, logger)

		ops := server.NewGracefulServer(cfg.MetricsAddress, handler, logger)
		hc.RegisterReadinessCheck("shutdown", health.ShutdownCheck(ops.IsShuttingDown))
		if *configPath != "" {
			ops.SetConfigReloadFunc(func() error { return reloadLogLevel(*configPath, logger) })
		}
		go ops.HandleReloadSignals(ctx)
		go func() { opsErr <- ops.Run(ctx) }()
	}

	select {
	case err := <-runErr:
		stop()
		return err
	case err := <-opsErr:
		stop()
		<-runErr
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	}
}

// reloadLogLevel re-reads the config file and applies its log level. Other
// settings need a restart.
func reloadLogLevel(path string, logger logging.Logger) error {
	cfg, err := coordinator.LoadConfig(path)
	if err != nil {
		return err
	}
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	logger.SetLevel(level)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
