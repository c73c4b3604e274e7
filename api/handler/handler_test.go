package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/notifyagg/api/transport"
	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/internal/infrastructure/monitor"
	"github.com/fastygo/notifyagg/pkg/httpcontext"
)

type fakeAggregator struct {
	mu         sync.Mutex
	events     []domain.NotificationEvent
	result     domain.IntakeResult
	triggered  []domain.Frequency
	triggerErr error
}

func (f *fakeAggregator) AddNotification(_ context.Context, event domain.NotificationEvent) domain.IntakeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.result
}

func (f *fakeAggregator) GetStats(_ context.Context, userID string) domain.AggregationStats {
	return domain.AggregationStats{UserID: userID, PendingCount: 3, GroupsCount: 1, DigestPendingCount: 2}
}

func (f *fakeAggregator) TriggerDigest(_ context.Context, _ string, cadence domain.Frequency) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, cadence)
	return f.triggerErr == nil, f.triggerErr
}

type fakePreferences struct {
	stored  map[string]*domain.UserAggregationPreferences
	getErr  error
	updated *domain.UserAggregationPreferences
}

func (f *fakePreferences) Get(_ context.Context, userID string) (*domain.UserAggregationPreferences, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if p, ok := f.stored[userID]; ok {
		return p, nil
	}
	return domain.DefaultPreferences(userID, domain.FrequencyHourly), nil
}

func (f *fakePreferences) Update(_ context.Context, prefs *domain.UserAggregationPreferences) (*domain.UserAggregationPreferences, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	f.updated = prefs
	return prefs, nil
}

func newRequest(method, body string, caller, role string, params map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetBodyString(body)
	if caller != "" {
		ctx.SetUserValue("auth.user_id", caller)
		ctx.SetUserValue("auth.role", role)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func decodeEnvelope(t *testing.T, ctx *fasthttp.RequestCtx) (transport.Envelope, map[string]any) {
	t.Helper()
	var env transport.Envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	data, _ := env.Data.(map[string]any)
	return env, data
}

func adapter() *httpcontext.Adapter {
	return httpcontext.NewAdapter(context.Background(), time.Second)
}

func TestNotificationHandler_Create(t *testing.T) {
	engine := &fakeAggregator{result: domain.IntakeResult{GroupKey: "user-1:social:like:post-1"}}
	h := NewNotificationHandler(engine, adapter(), nil)

	ctx := newRequest(http.MethodPost, `{
		"user_id": "user-1",
		"type": "like",
		"category": "social",
		"title": "Alice liked your post",
		"actors": [{"id": "a1", "name": "Alice"}],
		"target": {"id": "post-1", "type": "post"}
	}`, "", "", nil)
	h.Create(ctx)

	assert.Equal(t, http.StatusAccepted, ctx.Response.StatusCode())
	env, data := decodeEnvelope(t, ctx)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "user-1:social:like:post-1", data["group_key"])
	assert.Equal(t, false, data["immediate"])

	require.Len(t, engine.events, 1)
	assert.Equal(t, "post-1", engine.events[0].Target.ID)
	assert.Equal(t, "Alice", engine.events[0].Actors[0].Name)
	assert.NotEmpty(t, string(ctx.Response.Header.Peek("X-Request-ID")))
}

func TestNotificationHandler_CreateRejectsInvalidBody(t *testing.T) {
	engine := &fakeAggregator{}
	h := NewNotificationHandler(engine, adapter(), nil)

	for name, body := range map[string]string{
		"malformed":         `{"user_id":`,
		"missing category":  `{"user_id":"u","type":"like","title":"t"}`,
		"bad priority":      `{"user_id":"u","type":"like","category":"social","title":"t","priority":"panic"}`,
		"target without id": `{"user_id":"u","type":"like","category":"social","title":"t","target":{"type":"post"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := newRequest(http.MethodPost, body, "", "", nil)
			h.Create(ctx)

			assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
			env, _ := decodeEnvelope(t, ctx)
			assert.Equal(t, string(domain.ErrCodeInvalid), env.Code)
		})
	}
	assert.Empty(t, engine.events)
}

func TestAggregationHandler_Stats(t *testing.T) {
	h := NewAggregationHandler(&fakeAggregator{}, adapter(), nil)

	ctx := newRequest(http.MethodGet, "", "user-1", "", map[string]string{"userId": "user-1"})
	h.Stats(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	_, data := decodeEnvelope(t, ctx)
	assert.Equal(t, "user-1", data["user_id"])
	assert.EqualValues(t, 3, data["pending_count"])
	assert.EqualValues(t, 2, data["digest_pending_count"])
}

func TestAggregationHandler_StatsAuthorization(t *testing.T) {
	h := NewAggregationHandler(&fakeAggregator{}, adapter(), nil)

	anonymous := newRequest(http.MethodGet, "", "", "", map[string]string{"userId": "user-1"})
	h.Stats(anonymous)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Response.StatusCode())

	other := newRequest(http.MethodGet, "", "user-2", "", map[string]string{"userId": "user-1"})
	h.Stats(other)
	assert.Equal(t, http.StatusForbidden, other.Response.StatusCode())

	admin := newRequest(http.MethodGet, "", "ops", "admin", map[string]string{"userId": "user-1"})
	h.Stats(admin)
	assert.Equal(t, http.StatusOK, admin.Response.StatusCode())
}

func TestAggregationHandler_TriggerDigest(t *testing.T) {
	engine := &fakeAggregator{}
	h := NewAggregationHandler(engine, adapter(), nil)

	ctx := newRequest(http.MethodPost, "", "user-1", "", map[string]string{"userId": "user-1", "cadence": "Daily"})
	h.TriggerDigest(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	_, data := decodeEnvelope(t, ctx)
	assert.Equal(t, "daily", data["cadence"])
	assert.Equal(t, true, data["delivered"])
	assert.Equal(t, []domain.Frequency{domain.FrequencyDaily}, engine.triggered)
}

func TestAggregationHandler_TriggerDigestErrors(t *testing.T) {
	engine := &fakeAggregator{}
	h := NewAggregationHandler(engine, adapter(), nil)

	bad := newRequest(http.MethodPost, "", "user-1", "", map[string]string{"userId": "user-1", "cadence": "instant"})
	h.TriggerDigest(bad)
	assert.Equal(t, http.StatusBadRequest, bad.Response.StatusCode())
	assert.Empty(t, engine.triggered)

	engine.triggerErr = domain.NewError(domain.ErrCodeUnavailable, "digest delivery is not configured")
	unavailable := newRequest(http.MethodPost, "", "user-1", "", map[string]string{"userId": "user-1", "cadence": "weekly"})
	h.TriggerDigest(unavailable)
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.Response.StatusCode())

	engine.triggerErr = errors.New("disk on fire")
	internal := newRequest(http.MethodPost, "", "user-1", "", map[string]string{"userId": "user-1", "cadence": "weekly"})
	h.TriggerDigest(internal)
	assert.Equal(t, http.StatusInternalServerError, internal.Response.StatusCode())
	env, _ := decodeEnvelope(t, internal)
	assert.Equal(t, "internal error", env.Error)
}

func TestPreferencesHandler_GetAndUpdate(t *testing.T) {
	prefs := &fakePreferences{}
	h := NewPreferencesHandler(prefs, adapter(), nil)

	get := newRequest(http.MethodGet, "", "user-1", "", map[string]string{"userId": "user-1"})
	h.Get(get)
	assert.Equal(t, http.StatusOK, get.Response.StatusCode())
	_, data := decodeEnvelope(t, get)
	assert.Equal(t, "hourly", data["default_frequency"])

	put := newRequest(http.MethodPut, `{
		"enabled": true,
		"default_frequency": "daily",
		"category_frequencies": {"system": "instant"},
		"quiet_hours": {"enabled": true, "start": "22:00", "end": "07:00"},
		"digest_day": 5
	}`, "user-1", "", map[string]string{"userId": "user-1"})
	h.Update(put)

	require.Equal(t, http.StatusOK, put.Response.StatusCode(), string(put.Response.Body()))
	require.NotNil(t, prefs.updated)
	assert.Equal(t, "user-1", prefs.updated.UserID)
	assert.Equal(t, domain.FrequencyDaily, prefs.updated.DefaultFrequency)
	assert.Equal(t, domain.FrequencyInstant, prefs.updated.CategoryFrequencies["system"])
	assert.Equal(t, time.Friday, prefs.updated.DigestDay)
	assert.True(t, prefs.updated.QuietHours.Enabled)
}

func TestPreferencesHandler_UpdateValidation(t *testing.T) {
	prefs := &fakePreferences{}
	h := NewPreferencesHandler(prefs, adapter(), nil)

	for name, body := range map[string]string{
		"missing enabled":   `{"default_frequency":"daily"}`,
		"unknown frequency": `{"enabled":true,"default_frequency":"monthly"}`,
		"bad category":      `{"enabled":true,"default_frequency":"daily","category_frequencies":{"social":"yearly"}}`,
		"quiet hours gap":   `{"enabled":true,"default_frequency":"daily","quiet_hours":{"enabled":true,"start":"22:00"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := newRequest(http.MethodPut, body, "user-1", "", map[string]string{"userId": "user-1"})
			h.Update(ctx)
			assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
		})
	}
	assert.Nil(t, prefs.updated)
}

func TestPreferencesHandler_ForbiddenForOtherUsers(t *testing.T) {
	prefs := &fakePreferences{}
	h := NewPreferencesHandler(prefs, adapter(), nil)

	ctx := newRequest(http.MethodPut, `{"enabled":true,"default_frequency":"daily"}`, "user-2", "", map[string]string{"userId": "user-1"})
	h.Update(ctx)

	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())
	assert.Nil(t, prefs.updated)
}

func TestPreferencesHandler_GetStoreFailure(t *testing.T) {
	prefs := &fakePreferences{getErr: domain.WrapError(domain.ErrCodeUnavailable, "preferences store unavailable", errors.New("dial tcp"))}
	h := NewPreferencesHandler(prefs, adapter(), nil)

	ctx := newRequest(http.MethodGet, "", "user-1", "", map[string]string{"userId": "user-1"})
	h.Get(ctx)

	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
}

func TestHealthHandler(t *testing.T) {
	mon := monitor.New(time.Minute, nil)
	mon.AddProbe("postgres", func(context.Context) error { return errors.New("down") }, true)
	mon.AddGauge("active_groups", func() int { return 4 })
	h := NewHealthHandler(mon, adapter(), nil)

	mon.Refresh(context.Background())
	ctx := newRequest(http.MethodGet, "", "", "", nil)
	h.Check(ctx)
	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())

	healthy := monitor.New(time.Minute, nil)
	healthy.AddGauge("active_groups", func() int { return 4 })
	healthy.Refresh(context.Background())
	h = NewHealthHandler(healthy, adapter(), nil)

	ctx = newRequest(http.MethodGet, "", "", "", nil)
	h.Check(ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	_, data := decodeEnvelope(t, ctx)
	gauges, _ := data["gauges"].(map[string]any)
	assert.EqualValues(t, 4, gauges["active_groups"])
}
