package memory

import (
	"context"
	"sync"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/repository"
)

type preferencesRepository struct {
	mu    sync.RWMutex
	prefs map[string]domain.UserAggregationPreferences
}

// NewPreferencesRepository creates an in-process preferences store.
func NewPreferencesRepository() repository.PreferencesRepository {
	return &preferencesRepository{prefs: make(map[string]domain.UserAggregationPreferences)}
}

func (r *preferencesRepository) Get(_ context.Context, userID string) (*domain.UserAggregationPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[userID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	return clonePreferences(&p), nil
}

func (r *preferencesRepository) Save(_ context.Context, prefs *domain.UserAggregationPreferences) error {
	if prefs == nil || prefs.UserID == "" {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[prefs.UserID] = *clonePreferences(prefs)
	return nil
}

func clonePreferences(p *domain.UserAggregationPreferences) *domain.UserAggregationPreferences {
	out := *p
	out.CategoryFrequencies = make(map[string]domain.Frequency, len(p.CategoryFrequencies))
	for k, v := range p.CategoryFrequencies {
		out.CategoryFrequencies[k] = v
	}
	if p.QuietHours != nil {
		q := *p.QuietHours
		out.QuietHours = &q
	}
	return &out
}
