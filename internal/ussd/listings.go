package ussd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/internal/i18n"
	"github.com/thebtf/inkingi-ussd/internal/menu"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

const (
	maxTitleLen   = 35
	maxContentLen = 200
	shortIDLen    = 8
	timeLayout    = "2006-01-02 15:04"
	notAvailable  = "N/A"
)

// listing is a fetched data-driven screen before rendering.
type listing struct {
	header string
	empty  string
	rows   []string
	items  []models.ListItem
}

// listing fetches, caches and renders a data-driven screen.
func (w *walk) listing(s *menu.Screen) Reply {
	var (
		l   listing
		err error
	)
	switch s.Name {
	case menu.ViewEmergencies:
		l, err = w.allEmergencies()
	case menu.MyEmergencies:
		l, err = w.userEmergencies()
	case menu.News:
		l, err = w.posts("", "listing.posts_title", "listing.no_posts")
	case menu.Events:
		l, err = w.posts("event", "listing.events_title", "listing.no_events")
	default:
		log.Error().Str("screen", s.Name).Msg("No listing source for data-driven screen")
		return w.invalid()
	}
	if err != nil {
		log.Warn().Err(err).Str("sessionId", w.req.SessionID).Str("screen", s.Name).Msg("Listing fetch failed")
		recordFailure(w.ctx, "backend")
	}

	// The cached list is replaced every time the screen is rendered.
	w.engine.store.Merge(w.ctx, w.req.SessionID, models.Patch{
		Lists: map[string][]models.ListItem{s.List: l.items},
	})
	if w.sess.Lists == nil {
		w.sess.Lists = make(map[string][]models.ListItem)
	}
	w.sess.Lists[s.List] = l.items

	goBack := "0. " + w.graph.T("common.go_back", nil)
	if len(l.items) == 0 {
		return Continue(l.empty + "\n" + goBack)
	}

	var b strings.Builder
	b.WriteString(l.header)
	for i, row := range l.rows {
		fmt.Fprintf(&b, "\n%d. %s", i+1, row)
	}
	b.WriteString("\n" + goBack)
	return Continue(b.String())
}

func (w *walk) allEmergencies() (listing, error) {
	l := listing{empty: w.graph.T("listing.no_emergencies", nil)}
	page, err := w.engine.backend.GetEmergencies(w.ctx, models.ListFilter{Limit: models.MaxListItems})
	if err != nil {
		return l, err
	}
	l.header = w.graph.T("listing.all_emergencies", i18n.Params{"count": page.Total})
	for _, e := range first(page.Emergencies, models.MaxListItems) {
		name := e.User.FullName()
		if name == "" {
			name = w.graph.T("listing.unknown", nil)
		}
		l.rows = append(l.rows, w.emergencyLine(e)+"\n   "+w.graph.T("listing.by", i18n.Params{"name": name}))
		l.items = append(l.items, models.ListItem{ID: e.ID, Label: e.Type})
	}
	return l, nil
}

func (w *walk) userEmergencies() (listing, error) {
	l := listing{empty: w.graph.T("listing.no_emergencies", nil)}
	page, err := w.engine.backend.GetUserEmergencies(w.ctx, w.req.PhoneNumber)
	if err != nil {
		return l, err
	}
	l.empty = w.graph.T("listing.no_my_emergencies", nil)
	l.header = w.graph.T("listing.my_emergencies", i18n.Params{"count": page.Total})
	for _, e := range first(page.Emergencies, models.MaxListItems) {
		l.rows = append(l.rows, fmt.Sprintf("%s (%s...)", w.emergencyLine(e), shortID(e.ID)))
		l.items = append(l.items, models.ListItem{ID: e.ID, Label: e.Type})
	}
	return l, nil
}

func (w *walk) posts(category, headerKey, emptyKey string) (listing, error) {
	l := listing{
		header: w.graph.T(headerKey, nil),
		empty:  w.graph.T(emptyKey, nil),
	}
	page, err := w.engine.backend.GetPosts(w.ctx, models.ListFilter{Limit: models.MaxListItems, Category: category})
	if err != nil {
		return l, err
	}
	for _, p := range first(page.Posts, models.MaxListItems) {
		title := p.Title
		if title == "" {
			title = w.graph.T("listing.post", nil)
		}
		l.rows = append(l.rows, truncate(title, maxTitleLen))
		l.items = append(l.items, models.ListItem{ID: p.ID, Label: p.Title})
	}
	return l, nil
}

func (w *walk) emergencyLine(e models.Emergency) string {
	typ := e.Type
	if typ == "" {
		typ = w.graph.T("listing.emergency", nil)
	}
	status := e.Status
	if status == "" {
		status = "PENDING"
	}
	return typ + " - " + status
}

// detail renders the idx-th cached item of a data-driven screen.
func (w *walk) detail(s *menu.Screen, idx int) Reply {
	items := w.sess.List(s.List)
	notFoundKey := "responses.post_not_found"
	if s.List == models.ListEmergencies {
		notFoundKey = "responses.emergency_not_found"
	}
	goBack := "0. " + w.graph.T("common.go_back", nil)
	notFound := Continue(w.graph.T(notFoundKey, nil) + "\n" + goBack)

	if idx > len(items) {
		return notFound
	}
	id := items[idx-1].ID

	if s.List == models.ListEmergencies {
		e, err := w.engine.backend.GetEmergencyByID(w.ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("emergencyId", id).Msg("Emergency detail fetch failed")
			recordFailure(w.ctx, "backend")
			return notFound
		}
		return Continue(w.emergencyDetail(e) + "\n\n" + goBack)
	}

	p, err := w.engine.backend.GetPostByID(w.ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("postId", id).Msg("Post detail fetch failed")
		recordFailure(w.ctx, "backend")
		return notFound
	}
	return Continue(w.postDetail(p) + "\n\n" + goBack)
}

func (w *walk) emergencyDetail(e models.Emergency) string {
	or := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	reporter := or(e.User.FullName(), w.graph.T("listing.unknown", nil))
	phone := notAvailable
	if e.User != nil && e.User.PhoneNumber != "" {
		phone = e.User.PhoneNumber
	}

	lines := []string{
		w.graph.T("detail.emergency_title", nil),
		w.graph.T("detail.type", i18n.Params{"value": or(e.Type, notAvailable)}),
		w.graph.T("detail.status", i18n.Params{"value": or(e.Status, notAvailable)}),
		w.graph.T("detail.priority", i18n.Params{"value": or(e.Priority, notAvailable)}),
		w.graph.T("detail.location", i18n.Params{"value": or(e.Address, w.graph.T("detail.unknown_location", nil))}),
		w.graph.T("detail.reported_by", i18n.Params{"value": reporter}),
		w.graph.T("detail.phone", i18n.Params{"value": phone}),
		w.graph.T("detail.time", i18n.Params{"value": formatTime(e.CreatedAt)}),
	}
	return strings.Join(lines, "\n")
}

func (w *walk) postDetail(p models.Post) string {
	title := p.Title
	if title == "" {
		title = w.graph.T("detail.untitled", nil)
	}
	content := truncate(p.Content, maxContentLen)
	if content == "" {
		content = w.graph.T("detail.no_content", nil)
	}
	author := p.Author
	if author == "" {
		author = p.CreatedBy
	}
	if author == "" {
		author = w.graph.T("listing.unknown", nil)
	}

	var b strings.Builder
	b.WriteString(w.graph.T("detail.post_title", nil))
	b.WriteString("\n" + w.graph.T("detail.title", i18n.Params{"value": title}))
	b.WriteString("\n\n" + content)
	b.WriteString("\n\n" + w.graph.T("detail.by", i18n.Params{"value": author}))
	b.WriteString("\n" + w.graph.T("detail.posted", i18n.Params{"value": formatTime(p.CreatedAt)}))
	return b.String()
}

func first[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// truncate caps s at n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func shortID(id string) string {
	if id == "" {
		return notAvailable
	}
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format(timeLayout)
}
