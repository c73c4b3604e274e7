package aggregation

import (
	"strings"

	"github.com/fastygo/notifyagg/domain"
	"github.com/fastygo/notifyagg/pkg/fieldpath"
)

// KeyDelimiter joins the parts of a group key.
const KeyDelimiter = ":"

// BuildKey derives the aggregation identity of an event: user, category and
// type, followed by every group_by field of the rule that resolves. Fields
// that do not resolve are skipped rather than rejected, so a producer that
// omits a field gets coarser grouping instead of an error.
func BuildKey(event *domain.NotificationEvent, rule *domain.AggregationRule) string {
	parts := []string{event.UserID, event.Category, event.Type}
	if rule != nil && len(rule.GroupBy) > 0 {
		root := event.Value()
		for _, path := range rule.GroupBy {
			if text, ok := fieldpath.ResolveText(root, path); ok {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, KeyDelimiter)
}
