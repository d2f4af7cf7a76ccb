package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/expensetracker/internal/actorctx"
	"github.com/geocoder89/expensetracker/internal/domain/expense"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
)

func TestLogger_AddsSubjectAndTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = actorctx.WithSubjectID(ctx, "u1")

	log.DebugContext(ctx, "hidden_in_prod")
	log.InfoContext(ctx, "expense_created", "expense_id", "e1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "expense_created", line["msg"])
	assert.Equal(t, "u1", line["subject"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", line["span_id"])
}

func TestLogger_PlainContext(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "dev").DebugContext(context.Background(), "boot")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.NotContains(t, line, "subject")
	assert.NotContains(t, line, "trace_id")
}

func TestClassifyGatewayErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("get: %w", expense.ErrNotFound), "not_found"},
		{identity.ErrInvalidCredential, "rejected"},
		{&identity.RegistrationError{Code: identity.CodeEmailExists}, "rejected"},
		{context.DeadlineExceeded, "timeout"},
		{&googleapi.Error{Code: 429}, "throttled"},
		{fmt.Errorf("%w: %w", expense.ErrStoreUnavailable, &googleapi.Error{Code: 503}), "upstream_5xx"},
		{&googleapi.Error{Code: 403}, "upstream_4xx"},
		{&pgconn.PgError{Code: "23505"}, "pg_23505"},
		{errors.New("dial tcp: connection refused"), "connection"},
		{errors.New("weird"), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyGatewayErr(tt.err), "%v", tt.err)
	}
}

func TestObserveGateway(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	require.NoError(t, p.ObserveGateway("expenses.insert", func() error { return nil }))
	assert.ErrorIs(t, p.ObserveGateway("expenses.get", func() error { return expense.ErrNotFound }), expense.ErrNotFound)
	_ = p.ObserveGateway("expenses.get", func() error { return expense.ErrStoreUnavailable })

	assert.Equal(t, 1.0, testutil.ToFloat64(p.GatewayErrorsTotal.WithLabelValues("expenses.get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.GatewayErrorsTotal.WithLabelValues("expenses.get", "unknown")))
	assert.Equal(t, 3, testutil.CollectAndCount(p.GatewayDuration))

	var nilProm *Prom
	assert.NoError(t, nilProm.ObserveGateway("noop", func() error { return nil }))
}
