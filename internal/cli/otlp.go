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
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials/insecure"

	otelexporter "github.com/antimetal/hoststat/pkg/hoststat/exporter/otel"
)

const meterName = "github.com/antimetal/hoststat"

type otlpOptions struct {
	Endpoint string
	Insecure bool
	Interval time.Duration
	NodeName string
}

// startOTLPPush pushes snapshots from source to an OTLP gRPC endpoint every
// Interval. The returned function flushes and stops the pipeline.
func startOTLPPush(ctx context.Context, opts otlpOptions, source otelexporter.Source, logger logr.Logger) (func(context.Context) error, error) {
	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName("hoststat")),
	}
	if opts.NodeName != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.HostName(opts.NodeName)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build OTLP resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(opts.Interval))),
		sdkmetric.WithResource(res),
	)

	registration, err := otelexporter.Register(
		provider.Meter(meterName, metric.WithInstrumentationVersion("1.0.0")),
		source, logger)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	logger.Info("Pushing metrics over OTLP", "endpoint", opts.Endpoint, "interval", opts.Interval)
	return func(ctx context.Context) error {
		return errors.Join(registration.Unregister(), provider.Shutdown(ctx))
	}, nil
}
