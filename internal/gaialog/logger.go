// Package gaialog provides structured logging for every GAIA service.
//
// The Logger interface is deliberately small: Debug/Info/Warn/Error plus
// With, so a component that only needs logging never has to import a
// concrete implementation. ProductionLogger is the only implementation
// that writes output (NoOp returns one that discards everything);
// it writes JSON to log aggregators in production and a human-readable
// line format in development, and optionally folds a low-cardinality
// subset of fields into a metrics counter when a MetricsSink is attached.
package gaialog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger is the contract every GAIA package logs through.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	InfoContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorContext(ctx context.Context, msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// MetricsSink lets telemetry attach itself to the logger without the
// logger importing the telemetry package.
type MetricsSink interface {
	Counter(name string, labels ...string)
}

// allowedMetricLabels mirrors the cardinality guard the framework
// applies before turning a log field into a metric label: only fields
// with a small, known set of values are safe as label dimensions.
var allowedMetricLabels = map[string]bool{
	"operation": true, "status": true, "error_type": true,
	"component": true, "outcome": true,
}

// ProductionLogger is the production Logger implementation: JSON or
// text output, a baseline set of persistent fields (added via With),
// and optional metrics emission.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer
	metrics     MetricsSink
	base        map[string]interface{}
}

// New builds a ProductionLogger. format is "json" or "text"; level is
// one of debug/info/warn/error. Only "debug" changes the output (it
// enables Debug lines); Info, Warn and Error are written at every level.
func New(serviceName, level, format string) *ProductionLogger {
	return &ProductionLogger{
		level:       strings.ToLower(level),
		debug:       strings.ToLower(level) == "debug",
		serviceName: serviceName,
		format:      format,
		output:      os.Stdout,
	}
}

// noopLogger discards everything; package constructors fall back to
// it instead of requiring every caller to thread a *testing.T logger
// through construction.
type noopLogger struct{}

func (noopLogger) Debug(string, map[string]interface{})                            {}
func (noopLogger) Info(string, map[string]interface{})                             {}
func (noopLogger) Warn(string, map[string]interface{})                             {}
func (noopLogger) Error(string, map[string]interface{})                            {}
func (noopLogger) InfoContext(context.Context, string, map[string]interface{})     {}
func (noopLogger) ErrorContext(context.Context, string, map[string]interface{})    {}
func (n noopLogger) With(map[string]interface{}) Logger                           { return n }

// NoOp returns a Logger that discards everything.
func NoOp() Logger { return noopLogger{} }

// WithOutput overrides the destination writer (tests use this to
// capture output).
func (p *ProductionLogger) WithOutput(w io.Writer) *ProductionLogger {
	clone := *p
	clone.output = w
	return &clone
}

// EnableMetrics attaches a MetricsSink; called by internal/telemetry
// during startup wiring so the log package never imports telemetry.
func (p *ProductionLogger) EnableMetrics(sink MetricsSink) {
	p.metrics = sink
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent(context.Background(), "DEBUG", msg, fields)
	}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent(context.Background(), "INFO", msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent(context.Background(), "WARN", msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent(context.Background(), "ERROR", msg, fields)
}

func (p *ProductionLogger) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent(ctx, "INFO", msg, fields)
}

func (p *ProductionLogger) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent(ctx, "ERROR", msg, fields)
}

// With returns a child logger that always includes the given fields.
func (p *ProductionLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(p.base)+len(fields))
	for k, v := range p.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	clone := *p
	clone.base = merged
	return &clone
}

func (p *ProductionLogger) logEvent(ctx context.Context, level, msg string, fields map[string]interface{}) {
	timestamp := time.Now().Format(time.RFC3339)

	merged := make(map[string]interface{}, len(p.base)+len(fields))
	for k, v := range p.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	if requestID := requestIDFromContext(ctx); requestID != "" {
		merged["request_id"] = requestID
	}

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"message":   msg,
		}
		for k, v := range merged {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		var b strings.Builder
		for k, v := range merged {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s\n", timestamp, level, p.serviceName, msg, b.String())
	}

	if p.metrics != nil {
		labels := []string{"level", level, "service", p.serviceName}
		for k, v := range merged {
			if allowedMetricLabels[k] {
				labels = append(labels, k, fmt.Sprintf("%v", v))
			}
		}
		p.metrics.Counter("gaia.log.events", labels...)
	}
}

type requestIDKey struct{}

// ContextWithRequestID stashes a request/turn id for log correlation.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
