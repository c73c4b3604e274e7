package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/notifyagg/repository/bolt"
)

func TestMonitor_RequiredProbeDecidesOnline(t *testing.T) {
	m := New(time.Minute, nil)
	m.AddProbe("postgres", func(context.Context) error { return nil }, true)
	m.AddProbe("redis", func(context.Context) error { return errors.New("refused") }, false)
	m.AddGauge("active_groups", func() int { return 7 })

	status := m.Refresh(context.Background())

	assert.True(t, status.Online)
	require.Len(t, status.Components, 2)
	assert.Equal(t, "postgres", status.Components[0].Name)
	assert.Equal(t, "refused", status.Components[1].Error)
	assert.Equal(t, 7, status.Gauges["active_groups"])

	m.AddProbe("bolt", func(context.Context) error { return errors.New("closed") }, true)
	assert.False(t, m.Refresh(context.Background()).Online)
	assert.False(t, m.IsOnline())
}

func TestMonitor_NilChecksAreIgnored(t *testing.T) {
	m := New(time.Minute, nil)
	m.AddProbe("postgres", PostgresProbe(nil), true)
	m.AddProbe("redis", RedisProbe(nil), true)

	status := m.Refresh(context.Background())
	assert.True(t, status.Online)
	assert.Empty(t, status.Components)
}

func TestBoltProbe(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "digests.db"), "", nil)
	require.NoError(t, err)

	probe := BoltProbe(store)
	assert.NoError(t, probe(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, probe(context.Background()))
}

func TestMonitor_StartStop(t *testing.T) {
	m := New(10*time.Millisecond, nil)
	m.AddProbe("noop", func(context.Context) error { return nil }, true)

	m.Start()
	require.Eventually(t, m.IsOnline, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}
