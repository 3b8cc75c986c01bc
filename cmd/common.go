package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/composureai/perfectstorm/internal/daemon"
	"github.com/composureai/perfectstorm/internal/metrics"
	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// commonFlags holds the CLI surface every executor subcommand shares
// (spec.md §6, "Executor CLI flags").
type commonFlags struct {
	nodesPool    string
	server       string
	pollInterval int
	metricsAddr  string
	logLevel     string
}

// addCommonFlags registers the flags shared by every executor subcommand.
func addCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVarP(&f.nodesPool, "nodes-pool", "n", "", "identifier of the group of nodes this executor manages (required)")
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "base URL of the Perfect Storm API server")
	cmd.Flags().IntVar(&f.pollInterval, "poll-interval", 1, "seconds between poll ticks")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.MarkFlagRequired("nodes-pool")
}

func (f *commonFlags) logLevelValue() logging.LogLevel {
	switch f.logLevel {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// newClient builds the psapi.Client and trigger.Driver shared by every
// executor (spec.md §4.1, §4.2).
func (f *commonFlags) newClient() (*psapi.Client, *trigger.Driver) {
	client := psapi.New(psapi.Config{ServerURL: f.server})
	driver := trigger.New(client.Triggers, time.Duration(f.pollInterval)*time.Second)
	return client, driver
}

// setupSignalContext returns a context cancelled on SIGINT/SIGTERM, so the
// convergence loop finishes its in-flight tick and exits cleanly (spec.md
// §5, "Cancellation & timeouts").
func setupSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serveMetrics starts the Prometheus /metrics endpoint in the background
// and returns a shutdown func. Bind failures are logged, not fatal: metrics
// are an observability nicety, not a precondition for reconciling.
func serveMetrics(addr string) func(context.Context) error {
	metrics.MustRegister(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn("Metrics", "metrics server stopped: %v", err)
		}
	}()

	return srv.Shutdown
}

// runExecutor runs loop to completion, announcing readiness to systemd
// once it starts and pinging the watchdog until it exits (spec.md §9
// Design Notes: systemd integration is best-effort, never required).
func runExecutor(ctx context.Context, loop func(context.Context) error) error {
	go daemon.WatchdogLoop(ctx)
	daemon.NotifyReady()
	return loop(ctx)
}

func requireNodesPool(f *commonFlags) error {
	if f.nodesPool == "" {
		return fmt.Errorf("--nodes-pool is required")
	}
	return nil
}
