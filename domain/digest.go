package domain

import "sort"

// DigestEntry is everything waiting in the digest store for one user and cadence.
type DigestEntry struct {
	UserID     string                        `json:"user_id"`
	Cadence    Frequency                     `json:"cadence"`
	Categories map[string][]AggregationGroup `json:"categories"`
}

func NewDigestEntry(userID string, cadence Frequency) *DigestEntry {
	return &DigestEntry{
		UserID:     userID,
		Cadence:    cadence,
		Categories: make(map[string][]AggregationGroup),
	}
}

// Add appends a group to its category list.
func (e *DigestEntry) Add(group AggregationGroup) {
	if e.Categories == nil {
		e.Categories = make(map[string][]AggregationGroup)
	}
	e.Categories[group.Category] = append(e.Categories[group.Category], group)
}

func (e *DigestEntry) Empty() bool {
	return e == nil || e.GroupCount() == 0
}

func (e *DigestEntry) GroupCount() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, groups := range e.Categories {
		n += len(groups)
	}
	return n
}

// TotalCount sums the notification counts of every group.
func (e *DigestEntry) TotalCount() int {
	if e == nil {
		return 0
	}
	total := 0
	for _, groups := range e.Categories {
		for _, g := range groups {
			total += g.Count
		}
	}
	return total
}

// GroupIDs lists the ids of every group in the entry.
func (e *DigestEntry) GroupIDs() []string {
	if e == nil {
		return nil
	}
	var ids []string
	for _, category := range e.CategoryNames() {
		for _, g := range e.Categories[category] {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// CategoryNames returns non-empty categories in sorted order.
func (e *DigestEntry) CategoryNames() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.Categories))
	for name, groups := range e.Categories {
		if len(groups) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
