package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ironsheep/frcnn-detect/internal/server"
)

const metricsPath = "/metrics"

func newServeCommand(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: "Serve the detect_objects, preprocess_image and list_labels tools over the MCP protocol. " +
			"Configure it in your MCP client; logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// startMetrics serves reg on addr until the returned shutdown is called.
func (a *app) startMetrics(addr string, reg *prometheus.Registry) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen for metrics")
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorw("metrics server stopped", "error", err)
		}
	}()
	a.logger.Infow("serving metrics", "addr", ln.Addr().String(), "path", metricsPath)
	return srv.Shutdown, nil
}

func (a *app) runServe(ctx context.Context, metricsAddr string) error {
	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = newMetricsRegistry()
	}

	// A nil *Registry must not reach newDetector as a non-nil interface.
	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	d, closeSession, err := a.newDetector(registerer)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSession(); err != nil {
			a.logger.Warnw("close session", "error", err)
		}
	}()

	if reg != nil {
		shutdown, err := a.startMetrics(metricsAddr, reg)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				a.logger.Warnw("metrics server shutdown", "error", err)
			}
		}()
	}

	kind, err := a.settings.ProcessorKind()
	if err != nil {
		return err
	}
	srv, err := server.New(d, server.Options{
		Processor:      kind,
		CaptureURL:     a.settings.Capture.URL,
		CaptureTimeout: a.settings.Capture.Timeout,
		Version:        Version,
		Logger:         a.logger.Named("server"),
	})
	if err != nil {
		return err
	}

	a.logger.Infow("MCP server starting", "version", Version, "commit", GitCommit, "processor", kind)

	// Run returns when stdin closes; a signal stops the process instead.
	done := make(chan error, 1)
	go func() { done <- srv.Run() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		a.logger.Infow("shutting down", "reason", ctx.Err())
		return nil
	}
}
