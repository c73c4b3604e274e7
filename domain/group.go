package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/notifyagg/pkg/fieldpath"
	"github.com/fastygo/notifyagg/pkg/placeholder"
)

const (
	// MaxPayloadActors caps the actor list handed to the sink.
	MaxPayloadActors = 5
	// summaryActors is how many distinct actors the summary text considers.
	summaryActors = 3
)

// AggregationGroup accumulates notifications that share a group key.
type AggregationGroup struct {
	ID                string              `json:"id"`
	GroupKey          string              `json:"group_key"`
	UserID            string              `json:"user_id"`
	Category          string              `json:"category"`
	Type              string              `json:"type"`
	RuleID            string              `json:"rule_id,omitempty"`
	CollapseThreshold int                 `json:"collapse_threshold,omitempty"`
	Notifications     []NotificationEvent `json:"notifications"`
	Actors            []Actor             `json:"actors,omitempty"`
	Count             int                 `json:"count"`
	Summary           string              `json:"summary"`
	FirstAt           time.Time           `json:"first_at"`
	LastAt            time.Time           `json:"last_at"`
	Target            *Target             `json:"target,omitempty"`
	SentAt            *time.Time          `json:"sent_at,omitempty"`

	actorIDs map[string]struct{}
}

// NewGroup creates an empty group for key owned by the event's user.
func NewGroup(key string, event *NotificationEvent, rule *AggregationRule) *AggregationGroup {
	g := &AggregationGroup{
		ID:       uuid.NewString(),
		GroupKey: key,
		UserID:   event.UserID,
		Category: event.Category,
		Type:     event.Type,
		actorIDs: make(map[string]struct{}),
	}
	if rule != nil {
		g.RuleID = rule.ID
		g.CollapseThreshold = rule.CollapseThreshold
	}
	return g
}

// Collapsed reports whether the group has grown past its rule's collapse
// threshold and should be shown as a count rather than itemised.
func (g *AggregationGroup) Collapsed() bool {
	return g.CollapseThreshold > 0 && g.Count >= g.CollapseThreshold
}

// Append adds the event, merges its actors and recomputes the summary.
func (g *AggregationGroup) Append(event NotificationEvent, rule *AggregationRule) {
	event.GroupKey = g.GroupKey
	g.Notifications = append(g.Notifications, event)
	g.Count = len(g.Notifications)

	for _, actor := range event.Actors {
		g.addActor(actor)
	}

	if g.FirstAt.IsZero() || event.CreatedAt.Before(g.FirstAt) {
		g.FirstAt = event.CreatedAt
	}
	if event.CreatedAt.After(g.LastAt) {
		g.LastAt = event.CreatedAt
	}
	if g.Target == nil && event.Target != nil {
		target := *event.Target
		g.Target = &target
	}

	g.Summary = g.renderSummary(rule)
}

func (g *AggregationGroup) addActor(actor Actor) {
	if g.actorIDs == nil {
		g.actorIDs = make(map[string]struct{}, len(g.Actors))
		for _, a := range g.Actors {
			g.actorIDs[actorKey(a)] = struct{}{}
		}
	}
	key := actorKey(actor)
	if key == "" {
		return
	}
	if _, seen := g.actorIDs[key]; seen {
		return
	}
	g.actorIDs[key] = struct{}{}
	g.Actors = append(g.Actors, actor)
}

func actorKey(a Actor) string {
	if a.ID != "" {
		return a.ID
	}
	if a.Name != "" {
		return "name:" + a.Name
	}
	return ""
}

// Len returns the number of grouped notifications.
func (g *AggregationGroup) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Notifications)
}

// RemainingActors counts distinct actors beyond the ones the summary names.
func (g *AggregationGroup) RemainingActors() int {
	if n := len(g.Actors) - summaryActors; n > 0 {
		return n
	}
	return 0
}

// Recent returns up to n notifications, newest first.
func (g *AggregationGroup) Recent(n int) []NotificationEvent {
	if n <= 0 || len(g.Notifications) == 0 {
		return nil
	}
	if n > len(g.Notifications) {
		n = len(g.Notifications)
	}
	out := make([]NotificationEvent, 0, n)
	for i := len(g.Notifications) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, g.Notifications[i])
	}
	return out
}

func (g *AggregationGroup) NotificationIDs() []string {
	ids := make([]string, len(g.Notifications))
	for i, n := range g.Notifications {
		ids[i] = n.ID
	}
	return ids
}

// MarkSent stamps the terminal delivery time.
func (g *AggregationGroup) MarkSent(at time.Time) {
	if g.SentAt == nil {
		g.SentAt = &at
	}
}

// Payload builds the aggregated shape handed to the sink.
func (g *AggregationGroup) Payload() *AggregatedPayload {
	actors := g.Actors
	if len(actors) > MaxPayloadActors {
		actors = actors[:MaxPayloadActors]
	}
	var body string
	if n := len(g.Notifications); n > 0 {
		body = g.Notifications[n-1].Body
	}
	var target *Target
	if g.Target != nil {
		t := *g.Target
		target = &t
	}
	return &AggregatedPayload{
		UserID:          g.UserID,
		GroupKey:        g.GroupKey,
		Category:        g.Category,
		Type:            g.Type,
		Summary:         g.Summary,
		Body:            body,
		Count:           g.Count,
		Actors:          append([]Actor(nil), actors...),
		Target:          target,
		NotificationIDs: g.NotificationIDs(),
		FirstAt:         g.FirstAt,
		LastAt:          g.LastAt,
	}
}

func (g *AggregationGroup) renderSummary(rule *AggregationRule) string {
	if rule == nil || rule.SummaryTemplate == "" {
		if g.Count == 1 {
			return g.Notifications[0].Title
		}
		return fmt.Sprintf("%d new %s notifications", g.Count, g.Category)
	}
	return placeholder.Render(rule.SummaryTemplate, g.summaryContext(rule))
}

func (g *AggregationGroup) summaryContext(rule *AggregationRule) fieldpath.Value {
	category, typ := rule.Category, rule.Type
	if typ == "" {
		typ = g.Type
	}
	fields := map[string]fieldpath.Value{
		"count":          fieldpath.Number(float64(g.Count)),
		"actorSummary":   fieldpath.String(ActorSummary(g.Actors)),
		"remainingCount": fieldpath.Number(float64(g.RemainingActors())),
		"category":       fieldpath.String(category),
		"type":           fieldpath.String(typ),
	}
	if g.Target != nil {
		fields["target"] = g.Target.value()
	}
	return fieldpath.Map(fields)
}

// ActorSummary renders the distinct actors as "A", "A and B" or
// "A, B, and N others" where N counts every actor after the first two.
func ActorSummary(actors []Actor) string {
	switch len(actors) {
	case 0:
		return ""
	case 1:
		return actors[0].Name
	case 2:
		return fmt.Sprintf("%s and %s", actors[0].Name, actors[1].Name)
	default:
		return fmt.Sprintf("%s, %s, and %d others", actors[0].Name, actors[1].Name, len(actors)-2)
	}
}
