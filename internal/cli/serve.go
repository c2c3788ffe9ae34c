// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	promexporter "github.com/antimetal/hoststat/pkg/hoststat/exporter/prometheus"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve snapshots as Prometheus metrics, optionally pushing them over OTLP",
		Args:  cobra.NoArgs,
		Example: `  hoststat serve --listen :9100
  hoststat serve --otlp-endpoint localhost:4317 --otlp-insecure --interval 15s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().String(keyListen, ":9100", "Address to serve /metrics on")
	cmd.Flags().Duration(keyInterval, time.Second, "OTLP push interval")
	cmd.Flags().String(keyOTLPEndpoint, "", "OTLP gRPC endpoint to push to (disabled when empty)")
	cmd.Flags().Bool(keyOTLPInsecure, false, "Disable TLS for the OTLP connection")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	source, err := newReloadingSource(opts)
	if err != nil {
		return err
	}
	source.watchConfig(opts.v, opts)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
		promexporter.New(source, opts.logger),
	)

	if endpoint := opts.v.GetString(keyOTLPEndpoint); endpoint != "" {
		stop, err := startOTLPPush(ctx, otlpOptions{
			Endpoint: endpoint,
			Insecure: opts.v.GetBool(keyOTLPInsecure),
			Interval: opts.config.Collection.Interval,
			NodeName: opts.config.NodeName,
		}, source, opts.logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := stop(shutdownCtx); err != nil {
				opts.logger.Error(err, "Failed to stop OTLP push")
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	listener, err := net.Listen("tcp", opts.v.GetString(keyListen))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return serveHTTP(ctx, listener, mux, opts)
}

func serveHTTP(ctx context.Context, listener net.Listener, handler http.Handler, opts *rootOptions) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.logger.Info("Serving metrics", "address", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		opts.logger.Info("Shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
