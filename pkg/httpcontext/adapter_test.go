package httpcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/notifyagg/pkg/logger"
)

func TestAttach_PropagatesRequestMetadata(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-Request-ID", "req-1")
	ctx.Request.Header.Set("X-User-ID", "user-1")
	ctx.Request.Header.SetUserAgent("tests")

	stdCtx, cancel := NewAdapter(context.Background(), time.Second).Attach(ctx)
	defer cancel()

	assert.Equal(t, "req-1", appLogger.RequestIDFromContext(stdCtx))
	assert.Equal(t, "req-1", string(ctx.Response.Header.Peek("X-Request-ID")))
	assert.Equal(t, "user-1", stdCtx.Value(KeyUserID))
	assert.Equal(t, "tests", stdCtx.Value(KeyUserAgent))

	deadline, ok := stdCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
}

func TestAttach_GeneratesRequestID(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}

	stdCtx, cancel := NewAdapter(context.Background(), 0).Attach(ctx)
	defer cancel()

	_, err := uuid.Parse(appLogger.RequestIDFromContext(stdCtx))
	assert.NoError(t, err)
}

func TestAttach_ParentCancellation(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	stdCtx, cancel := NewAdapter(parent, time.Minute).Attach(&fasthttp.RequestCtx{})
	defer cancel()

	stop()

	select {
	case <-stdCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("request context outlived its parent")
	}
}
