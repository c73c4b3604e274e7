package monitor

import "time"

type Component struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
}

type Status struct {
	Online     bool           `json:"online"`
	Components []Component    `json:"components"`
	Gauges     map[string]int `json:"gauges,omitempty"`
	LastCheck  time.Time      `json:"last_check"`
}

func (s Status) clone() Status {
	out := s
	out.Components = append([]Component(nil), s.Components...)
	return out
}
