package obs_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/lumina-dealer/internal/obs"
)

func TestDomainSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	_, ok := obs.StartSpan(context.Background(), "deal.submit", attribute.String("draft.id", "d1"))
	obs.EndSpan(ok, nil)
	_, failed := obs.StartSpan(context.Background(), "ledger.fetch")
	obs.EndSpan(failed, errors.New("ledger unavailable"))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "deal.submit", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Contains(t, spans[0].Attributes(), attribute.String("draft.id", "d1"))

	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Equal(t, "ledger unavailable", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)

	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Get("/api/v1/deals/{id}", func(w http.ResponseWriter, r *http.Request) {
		obs.TagCaller(r.Context(), "user_1", "admin")
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/deals/abc", nil))

	spans = rec.Ended()
	require.Len(t, spans, 3)
	server := spans[2]
	require.Equal(t, "GET /api/v1/deals/{id}", server.Name())
	require.Contains(t, server.Attributes(), attribute.String("http.route", "/api/v1/deals/{id}"))
	require.Contains(t, server.Attributes(), attribute.String("lumina.resource_id", "abc"))
	require.Contains(t, server.Attributes(), attribute.String("enduser.id", "user_1"))
}

func TestInitTracerNoneInstallsPropagators(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	_, err = obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.Error(t, err)
}
