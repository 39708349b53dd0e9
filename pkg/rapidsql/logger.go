package rapidsql

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the logging surface the runtime writes to. Any structured
// logger can be adapted to it.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
}

// Metrics records statement statistics.
type Metrics interface {
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
}

// QueryLog is the structured record emitted for every executed statement.
type QueryLog struct {
	Type     string `json:"type"`
	Query    string `json:"query"`
	Duration int64  `json:"duration"`
	Args     []any  `json:"args,omitempty"`
	Session  string `json:"session,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

func (l *QueryLog) PrettyPrint(writer io.Writer) {
	fmt.Fprintf(writer, "[38;5;8m%-32s [38;5;24m%-6s[0m %8d[38;5;8mµs[0m %s\n",
		l.Type, "SQL", l.Duration, clean(l.Query))
}

func clean(query string) string {
	query = regexp.MustCompile(`\s+`).ReplaceAllString(query, " ")
	query = strings.TrimSpace(query)

	return query
}

func (r *Runtime) sendOperationStats(ctx context.Context, s *session, start time.Time, queryType, query string, args ...any) {
	duration := time.Since(start).Microseconds()

	if r.logger != nil {
		l := &QueryLog{
			Type:     queryType,
			Query:    query,
			Duration: duration,
			Args:     args,
			Session:  s.id,
		}

		// Correlate with the active span when the host runs under tracing.
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			l.TraceID = sc.TraceID().String()
		}

		r.logger.Debug(l)
	}

	if r.metrics != nil {
		r.metrics.RecordHistogram(ctx, "rapidsql_statement_duration", float64(duration),
			"type", queryType, "operation", getOperationType(query))
	}
}

func getOperationType(query string) string {
	query = strings.TrimSpace(query)
	words := strings.Split(query, " ")

	return strings.ToUpper(words[0])
}
