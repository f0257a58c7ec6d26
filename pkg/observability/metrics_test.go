package observability_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/trust-engine/pkg/observability"
)

func TestTrustMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewTrustMetrics(reg)

	m.ObserveVerdict("high-risk", "computed", false)
	m.ObserveVerdict("high-risk", "computed", false)
	m.ObserveSignal("counterfeit", "timeout", 500*time.Millisecond)
	m.ObserveCache("hit")
	m.ObserveAudit("delivered", 3)
	m.SetAuditQueueDepth(7)

	expected := `
# HELP trust_verdicts_total Trust checks served, by classification, source and degradation.
# TYPE trust_verdicts_total counter
trust_verdicts_total{classification="high-risk",degraded="false",source="computed"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "trust_verdicts_total"))

	count, err := testutil.GatherAndCount(reg, "trust_evaluator_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(reg, "trust_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	shutdown, err := observability.InitTracer(context.Background(), observability.TracingConfig{ServiceName: "trustd"}, logger)

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
