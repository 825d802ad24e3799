package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const SERVICE_NAME = "t2t"

// SetupTracing installs a tracer provider for the named exporter. With no
// exporter the global no-op provider stays in place.
func SetupTracing(exporter string, runID uuid.UUID) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	var (
		spans sdktrace.SpanExporter
		err   error
	)
	switch exporter {
	case "", "none":
		return noop, nil
	case "stdout":
		// stdout carries translations, so spans go to stderr
		spans, err = stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
	default:
		return nil, errors.Errorf("unknown trace exporter %q", exporter)
	}
	if err != nil {
		return nil, errors.Wrap(err, "creating trace exporter")
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", SERVICE_NAME),
		attribute.String("service.instance.id", runID.String()),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// ServeMetrics exposes the prometheus registry on addr in the background
func ServeMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info(fmt.Sprintf("serving metrics on http://%s/metrics", addr))
	return srv
}
