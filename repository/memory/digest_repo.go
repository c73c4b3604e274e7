package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/repository"
)

type digestKey struct {
	userID  string
	cadence domain.Frequency
}

type digestRepository struct {
	mu      sync.Mutex
	entries map[digestKey]*domain.DigestEntry
}

// NewDigestRepository creates an in-process digest store. Contents are lost on restart.
func NewDigestRepository() repository.DigestRepository {
	return &digestRepository{entries: make(map[digestKey]*domain.DigestEntry)}
}

func (r *digestRepository) Append(_ context.Context, cadence domain.Frequency, group domain.AggregationGroup) error {
	if group.UserID == "" || group.ID == "" {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := digestKey{userID: group.UserID, cadence: cadence}
	entry, ok := r.entries[key]
	if !ok {
		entry = domain.NewDigestEntry(group.UserID, cadence)
		r.entries[key] = entry
	}
	entry.Add(group)
	return nil
}

func (r *digestRepository) Load(_ context.Context, userID string, cadence domain.Frequency) (*domain.DigestEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := domain.NewDigestEntry(userID, cadence)
	if entry, ok := r.entries[digestKey{userID: userID, cadence: cadence}]; ok {
		for category, groups := range entry.Categories {
			out.Categories[category] = append([]domain.AggregationGroup(nil), groups...)
		}
	}
	return out, nil
}

func (r *digestRepository) Remove(_ context.Context, userID string, cadence domain.Frequency, groupIDs []string) error {
	if len(groupIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		drop[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := digestKey{userID: userID, cadence: cadence}
	entry, ok := r.entries[key]
	if !ok {
		return nil
	}
	for category, groups := range entry.Categories {
		kept := groups[:0]
		for _, g := range groups {
			if _, gone := drop[g.ID]; !gone {
				kept = append(kept, g)
			}
		}
		if len(kept) == 0 {
			delete(entry.Categories, category)
			continue
		}
		entry.Categories[category] = kept
	}
	if entry.Empty() {
		delete(r.entries, key)
	}
	return nil
}

func (r *digestRepository) Users(_ context.Context, cadence domain.Frequency) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []string
	for key, entry := range r.entries {
		if key.cadence == cadence && !entry.Empty() {
			users = append(users, key.userID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (r *digestRepository) PendingCount(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for key, entry := range r.entries {
		if key.userID == userID {
			total += entry.TotalCount()
		}
	}
	return total, nil
}
