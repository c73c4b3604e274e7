package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/notifyagg/domain"
)

func TestCollector_RecordsAggregationEvents(t *testing.T) {
	c := NewCollector("test")

	c.IntakeObserved("grouped")
	c.IntakeObserved("grouped")
	c.IntakeObserved(string(domain.ReasonUrgent))
	c.FlushObserved("dispatched")
	c.ActiveGroups(4)
	c.DispatchObserved(domain.PayloadAggregated, nil)
	c.DispatchObserved(domain.PayloadDigest, errors.New("timeout"))
	c.DigestRunObserved(domain.FrequencyDaily, 3, 1, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.intake.WithLabelValues("grouped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.intake.WithLabelValues("urgent")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.activeGroups))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatches.WithLabelValues("digest", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.digestUsers.WithLabelValues("daily", "delivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.digestUsers.WithLabelValues("daily", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.digestRuns.WithLabelValues("daily")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")
	a.IntakeObserved("grouped")

	assert.Equal(t, 0.0, testutil.ToFloat64(b.intake.WithLabelValues("grouped")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.FlushObserved("noop")

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	c.Handler()(&ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, strings.Contains(string(ctx.Response.Body()), `test_group_flushes_total{outcome="noop"} 1`))
}
