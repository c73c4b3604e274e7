package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/notifyagg/usecase/aggregation"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.PreferencesBackend)
	assert.Equal(t, "memory", cfg.Storage.DigestBackend)
	assert.Equal(t, "hourly", cfg.Aggregation.DefaultFrequency)
	assert.Equal(t, "log", cfg.Sink.Kind)
	assert.Equal(t, int(time.Monday), cfg.Digest.WeeklyDay)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("DIGEST_BACKEND", "bolt")
	t.Setenv("DIGEST_DAILY_TIME", "07:45")
	t.Setenv("DIGEST_TIMEZONE", "UTC")
	t.Setenv("SINK_KIND", "webhook")
	t.Setenv("SINK_WEBHOOK_URL", "https://hooks.example.com/notify")
	t.Setenv("SINK_TIMEOUT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Storage.DigestBackend)
	assert.Equal(t, "07:45", cfg.Digest.DailyTime)
	assert.Equal(t, 3*time.Second, cfg.Sink.Timeout)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown preferences backend": {"PREFERENCES_BACKEND": "mongo"},
		"unknown frequency":           {"DEFAULT_FREQUENCY": "monthly"},
		"webhook without url":         {"SINK_KIND": "webhook"},
		"bad weekly day":              {"DIGEST_WEEKLY_DAY": "9"},
		"bad timezone":                {"DIGEST_TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: social-like
    category: social
    type: like
    group_by: [target.id]
    window_minutes: 60
    max_batch_size: 100
    summary_template: "{{actorSummary}} liked your {{target.type}}"
  - id: social
    category: social
    window_minutes: 30
    max_batch_size: 25
`), 0o600))

	rules, err = LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "social-like", rules[0].ID)
	assert.Equal(t, []string{"target.id"}, rules[0].GroupBy)
	assert.Equal(t, "{{actorSummary}} liked your {{target.type}}", rules[0].SummaryTemplate)
	assert.Equal(t, 25, rules[1].MaxBatchSize)
	assert.Empty(t, rules[1].Type)
}

func TestParseRules_Errors(t *testing.T) {
	_, err := ParseRules([]byte("rules: []"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("rules: [unclosed"))
	assert.Error(t, err)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultRules_RegisterCleanly(t *testing.T) {
	catalog, err := aggregation.NewRuleCatalog(DefaultRules()...)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultRules()), catalog.Len())
}
