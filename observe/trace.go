package observe

import (
	"context"
	"errors"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type fileExporter struct {
	*stdouttrace.Exporter
	f *os.File
}

func (e *fileExporter) Shutdown(ctx context.Context) error {
	return errors.Join(e.Exporter.Shutdown(ctx), e.f.Close())
}

// NewTraceFile returns an exporter that appends finished spans to path as
// JSON, one object per span. Shutdown closes the file.
func NewTraceFile(path string) (sdktrace.SpanExporter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileExporter{Exporter: exp, f: f}, nil
}
