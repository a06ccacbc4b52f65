package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type queryStartKey struct{}

// PGXTracer implements pgx.QueryTracer. Every statement gets a client span
// named after its SQL verb ("pgx.SELECT"). Statements slower than SlowQuery
// are also logged through the request logger on the context.
type PGXTracer struct {
	SlowQuery time.Duration
}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, _ = otel.Tracer("lumina-dealer/pgx").Start(ctx, "pgx."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", truncateSQL(data.SQL)),
		))
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

// TraceQueryEnd records rows affected and any error, then ends the span.
func (t PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	defer span.End()
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, "query failed")
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}

	started, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok || t.SlowQuery <= 0 {
		return
	}
	if took := time.Since(started); took >= t.SlowQuery {
		zerolog.Ctx(ctx).Warn().
			Str("db_operation", data.CommandTag.String()).
			Int64("duration_ms", took.Milliseconds()).
			Err(data.Err).
			Msg("slow_query")
	}
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToUpper(fields[0])
}

func truncateSQL(sql string) string {
	trimmed := strings.Join(strings.Fields(sql), " ")
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
