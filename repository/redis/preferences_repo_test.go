package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/notifyagg/domain"
)

func TestDecodePreferences(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, prefs *domain.UserAggregationPreferences)
	}{
		{
			name: "full document",
			raw:  `{"user_id":"u1","enabled":true,"default_frequency":"daily","category_frequencies":{"social":"weekly"},"quiet_hours":{"enabled":true,"start":"22:00","end":"07:00"},"digest_time":"08:30","digest_day":3}`,
			check: func(t *testing.T, prefs *domain.UserAggregationPreferences) {
				assert.Equal(t, domain.FrequencyDaily, prefs.DefaultFrequency)
				assert.Equal(t, domain.FrequencyWeekly, prefs.FrequencyFor("social"))
				assert.Equal(t, time.Wednesday, prefs.DigestDay)
				require.NotNil(t, prefs.QuietHours)
				assert.Equal(t, "22:00", prefs.QuietHours.Start)
			},
		},
		{
			name: "missing category map",
			raw:  `{"user_id":"u1","enabled":false,"default_frequency":"hourly"}`,
			check: func(t *testing.T, prefs *domain.UserAggregationPreferences) {
				assert.NotNil(t, prefs.CategoryFrequencies)
				assert.False(t, prefs.Enabled)
			},
		},
		{name: "corrupt json", raw: `{"user_id":`, wantErr: true},
		{name: "no user id", raw: `{"enabled":true}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs, err := decodePreferences([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, prefs)
		})
	}
}

func TestPreferencesRepository_Key(t *testing.T) {
	repo := NewPreferencesRepository(nil, 0).(*preferencesRepository)
	assert.Equal(t, "aggregation:prefs:user-1", repo.key("user-1"))
}

// Runs only when REDIS_TEST_URL points at a disposable Redis instance.
func TestPreferencesRepository_Redis(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redislib.ParseURL(url)
	require.NoError(t, err)
	client := redislib.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	repo := NewPreferencesRepository(client, time.Minute)
	userID := "test-" + time.Now().Format("150405.000000000")
	defer client.Del(ctx, "aggregation:prefs:"+userID)

	_, err = repo.Get(ctx, userID)
	assert.True(t, errors.Is(err, domain.ErrPreferencesNotFound))

	prefs := domain.DefaultPreferences(userID, domain.FrequencyDaily)
	prefs.CategoryFrequencies["system"] = domain.FrequencyInstant
	require.NoError(t, repo.Save(ctx, prefs))
	assert.False(t, prefs.UpdatedAt.IsZero())

	stored, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyDaily, stored.DefaultFrequency)
	assert.Equal(t, domain.FrequencyInstant, stored.FrequencyFor("system"))

	ttl, err := client.TTL(ctx, "aggregation:prefs:"+userID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
