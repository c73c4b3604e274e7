package digest

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/fastygo/notifyagg/domain"
)

// DefaultMaxItems is how many of a group's most recent notifications a digest
// lists before summarising the rest.
const DefaultMaxItems = 5

const htmlLayout = `<h1>{{.Subject}}</h1>
{{range .Sections}}<section>
<h2>{{.Title}}</h2>
{{range .Groups}}<div class="group">
<p><strong>{{.Summary}}</strong></p>
{{if .Collapsed}}<p>{{.Count}} notifications</p>
{{else}}<ul>
{{range .Items}}<li>{{.Title}}{{if .Body}}: {{.Body}}{{end}}</li>
{{end}}</ul>
{{if .More}}<p>...and {{.More}} more</p>
{{end}}{{end}}</div>
{{end}}</section>
{{end}}`

const textLayout = `{{.Subject}}
{{range .Sections}}
== {{.Title}} ==
{{range .Groups}}
{{.Summary}}
{{if .Collapsed}}  ({{.Count}} notifications)
{{else}}{{range .Items}}  - {{.Title}}{{if .Body}}: {{.Body}}{{end}}
{{end}}{{if .More}}  ...and {{.More}} more
{{end}}{{end}}{{end}}{{end}}`

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.New("digest.html").Parse(htmlLayout))
	textTemplate = texttemplate.Must(texttemplate.New("digest.txt").Parse(textLayout))
)

type view struct {
	Subject  string
	Total    int
	Sections []sectionView
}

type sectionView struct {
	Title  string
	Groups []groupView
}

type groupView struct {
	Summary   string
	Count     int
	Collapsed bool
	Items     []itemView
	More      int
}

type itemView struct {
	Title string
	Body  string
	At    time.Time
}

// Subject returns the digest headline for a cadence and total count.
func Subject(cadence domain.Frequency, total int) string {
	noun := "notifications"
	if total == 1 {
		noun = "notification"
	}
	return fmt.Sprintf("Your %s digest: %d new %s", cadence, total, noun)
}

// Render turns an entry into the digest payload. Each category becomes one
// section; each group lists at most maxItems of its newest notifications.
func Render(entry *domain.DigestEntry, maxItems int) (*domain.DigestPayload, error) {
	if entry == nil || entry.Empty() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "digest entry is empty")
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	total := entry.TotalCount()
	v := view{
		Subject: Subject(entry.Cadence, total),
		Total:   total,
	}
	for _, category := range entry.CategoryNames() {
		section := sectionView{Title: sectionTitle(category)}
		for _, group := range entry.Categories[category] {
			section.Groups = append(section.Groups, newGroupView(group, maxItems))
		}
		v.Sections = append(v.Sections, section)
	}

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, v); err != nil {
		return nil, fmt.Errorf("render html digest: %w", err)
	}
	if err := textTemplate.Execute(&text, v); err != nil {
		return nil, fmt.Errorf("render text digest: %w", err)
	}

	return &domain.DigestPayload{
		UserID:     entry.UserID,
		Cadence:    entry.Cadence,
		Subject:    v.Subject,
		HTMLBody:   html.String(),
		TextBody:   text.String(),
		TotalCount: total,
	}, nil
}

func newGroupView(group domain.AggregationGroup, maxItems int) groupView {
	if group.Collapsed() {
		return groupView{Summary: group.Summary, Count: group.Count, Collapsed: true}
	}
	recent := group.Recent(maxItems)
	items := make([]itemView, 0, len(recent))
	for _, n := range recent {
		items = append(items, itemView{Title: n.Title, Body: n.Body, At: n.CreatedAt})
	}
	more := group.Count - len(items)
	if more < 0 {
		more = 0
	}
	return groupView{
		Summary: group.Summary,
		Count:   group.Count,
		Items:   items,
		More:    more,
	}
}

func sectionTitle(category string) string {
	if category == "" {
		return "Other"
	}
	r, size := utf8.DecodeRuneInString(category)
	return string(unicode.ToUpper(r)) + category[size:]
}
