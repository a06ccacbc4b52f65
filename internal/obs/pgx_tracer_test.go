package obs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSQLOperation(t *testing.T) {
	require.Equal(t, "SELECT", sqlOperation("  select id from deals"))
	require.Equal(t, "query", sqlOperation(""))
	require.Equal(t, "INSERT INTO deals (id) VALUES ($1)", truncateSQL("INSERT INTO deals\n\t(id)\n VALUES ($1)"))
	require.True(t, strings.HasSuffix(truncateSQL(strings.Repeat("x ", 400)), "..."))
}

func TestPGXTracerLogsSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	tracer := PGXTracer{SlowQuery: time.Millisecond}
	qctx := tracer.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	time.Sleep(5 * time.Millisecond)
	tracer.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
	require.Contains(t, buf.String(), `"message":"slow_query"`)

	buf.Reset()
	fast := PGXTracer{SlowQuery: time.Hour}
	qctx = fast.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	fast.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
	require.Empty(t, buf.String())
}
