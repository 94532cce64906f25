package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/squadracorsepolito/acmeflow"
	"github.com/squadracorsepolito/acmeflow/config"
	"github.com/squadracorsepolito/acmeflow/internal"
	"github.com/squadracorsepolito/acmeflow/telemetry"
)

func main() {
	os.Exit(run())
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] config.(json|yaml) [id.param=value ...]\n", os.Args[0])
	flag.PrintDefaults()
}

func run() int {
	otelEnabled := flag.Bool("otel", false, "export traces and metrics over OTLP")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :2112")
	poll := flag.Duration("poll", time.Second, "interval between checks of the graph state")
	stats := flag.Duration("stats", 0, "interval between throughput logs, 0 disables them")
	verbose := flag.Bool("v", false, "enable debug logs of the command")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return 2
	}

	logger := internal.NewLogger("cmd", "acmeflow")
	logger.SetVerbose(*verbose)

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	graph, err := config.Load(flag.Arg(0))
	if err != nil {
		logger.Error("failed to load config", err, "path", flag.Arg(0))
		return 1
	}

	if err := graph.ApplyOverrides(flag.Args()[1:]); err != nil {
		logger.Error("failed to apply overrides", err)
		return 1
	}

	if *otelEnabled {
		providers, err := telemetry.Init(ctx, telemetry.NewDefaultConfig())
		if err != nil {
			logger.Error("failed to init telemetry", err)
			return 1
		}

		defer func() {
			if err := providers.Close(context.Background()); err != nil {
				logger.Error("failed to close telemetry", err)
			}
		}()
	}

	registry := acmeflow.NewRegistry()
	if err := acmeflow.RegisterBuiltins(registry); err != nil {
		logger.Error("failed to register builtins", err)
		return 1
	}

	fatal := make(chan error, 1)
	opts := []acmeflow.Option{
		acmeflow.WithPollInterval(*poll),
		acmeflow.WithStatsInterval(*stats),
		acmeflow.WithFatalHandler(func(err error) {
			select {
			case fatal <- err:
			default:
			}
		}),
	}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, acmeflow.WithPrometheusRegisterer(reg))

		server := serveMetrics(logger, *metricsAddr, reg)
		defer server.Shutdown(context.Background())
	}

	pipeline := acmeflow.NewPipeline(graph, registry, opts...)

	if err := pipeline.Init(ctx); err != nil {
		logger.Error("failed to init pipeline", err)
		return 1
	}

	if err := pipeline.Run(ctx); err != nil {
		logger.Error("failed to run pipeline", err)
		pipeline.Stop()
		return 1
	}

	done := make(chan struct{})
	go func() {
		pipeline.Wait()
		close(done)
	}()

	exitCode := 0

	select {
	case <-done:
		logger.Info("graph drained")
	case <-ctx.Done():
		logger.Info("stopping")
	case err := <-fatal:
		logger.Error("component failed, stopping", err)
		exitCode = 1
	}

	pipeline.Stop()

	return exitCode
}

func serveMetrics(logger *internal.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", err, "address", addr)
		}
	}()

	logger.Info("serving metrics", "address", addr)

	return server
}
