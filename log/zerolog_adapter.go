package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// zerologAdapter implements Logger on top of zerolog. Every event is
// enriched with the active trace and span ids so request log lines can be
// joined with their traces.
type zerologAdapter struct {
	zl zerolog.Logger
}

// NewZerologAdapter builds a Logger writing JSON to stderr, or zerolog's
// console writer when pretty is set.
func NewZerologAdapter(level zerolog.Level, pretty bool) Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &zerologAdapter{zl: zl}
}

// emit attaches trace ids and caller fields to the event and writes it.
func emit(ctx context.Context, event *zerolog.Event, msg string, fields []map[string]interface{}) {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event = event.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

func (z *zerologAdapter) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	emit(ctx, z.zl.Debug(), msg, fields)
}

func (z *zerologAdapter) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	emit(ctx, z.zl.Info(), msg, fields)
}

func (z *zerologAdapter) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	emit(ctx, z.zl.Warn(), msg, fields)
}

func (z *zerologAdapter) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	emit(ctx, z.zl.Error().Err(err), msg, fields)
}

func (z *zerologAdapter) Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	emit(ctx, z.zl.Fatal().Err(err), msg, fields)
}

// With binds fields into the logger's context for every subsequent event.
// Trace ids are still resolved per call, never frozen into the context, so a
// derived logger picks up whatever span is current when it logs.
func (z *zerologAdapter) With(fields map[string]interface{}) Logger {
	return &zerologAdapter{zl: z.zl.With().Fields(fields).Logger()}
}
