package postgres

import (
	"encoding/json"
	"time"

	"github.com/fastygo/notifyagg/domain"
)

func marshalFrequencies(data map[string]domain.Frequency) []byte {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

func marshalQuietHours(q *domain.QuietHours) []byte {
	if q == nil {
		return nil
	}
	b, err := json.Marshal(q)
	if err != nil {
		return nil
	}
	return b
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func unmarshalFrequencies(raw []byte) (map[string]domain.Frequency, error) {
	out := map[string]domain.Frequency{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalQuietHours(raw []byte) (*domain.QuietHours, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var q domain.QuietHours
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
