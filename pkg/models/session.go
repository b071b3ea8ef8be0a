// Package models contains domain models for the INKINGI Rescue USSD gateway.
package models

import "time"

// DefaultLocale is used when a session has no stored language.
const DefaultLocale = "en"

// Names of the list caches kept per session. A list is replaced every time the
// screen that produces it is rendered again.
const (
	ListEmergencies = "emergencies"
	ListPosts       = "posts"
	ListEvents      = "events"
)

// MaxListItems is the number of items a data-driven screen displays and caches.
const MaxListItems = 5

// ListItem is a cached entry of a data-driven screen.
type ListItem struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// EmergencySummary records the last emergency submitted from a session.
type EmergencySummary struct {
	ReferenceID string    `json:"reference_id"`
	Type        string    `json:"type"`
	PhoneNumber string    `json:"phone_number"`
	BackendID   string    `json:"backend_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DistressSummary records the last distress alert triggered from a session.
type DistressSummary struct {
	ReferenceID string    `json:"reference_id"`
	PhoneNumber string    `json:"phone_number"`
	BackendID   string    `json:"backend_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Session is the server-side state kept for a USSD session id.
// Navigation position is never stored here; it is recomputed from the dialed path.
type Session struct {
	Lists         map[string][]ListItem `json:"lists,omitempty"`
	LastEmergency *EmergencySummary     `json:"last_emergency,omitempty"`
	LastDistress  *DistressSummary      `json:"last_distress,omitempty"`
	LastActivity  time.Time             `json:"last_activity"`
	ID            string                `json:"id"`
	Locale        string                `json:"locale,omitempty"`
	FreeText      string                `json:"free_text,omitempty"`
}

// LocaleOrDefault returns the stored locale or DefaultLocale.
func (s Session) LocaleOrDefault() string {
	if s.Locale == "" {
		return DefaultLocale
	}
	return s.Locale
}

// List returns the cached list with the given name (nil if none).
func (s Session) List(name string) []ListItem {
	if s.Lists == nil {
		return nil
	}
	return s.Lists[name]
}

// Clone returns a deep copy safe to hand out across goroutines.
func (s Session) Clone() Session {
	out := s
	if s.Lists != nil {
		out.Lists = make(map[string][]ListItem, len(s.Lists))
		for name, items := range s.Lists {
			out.Lists[name] = append([]ListItem(nil), items...)
		}
	}
	if s.LastEmergency != nil {
		e := *s.LastEmergency
		out.LastEmergency = &e
	}
	if s.LastDistress != nil {
		d := *s.LastDistress
		out.LastDistress = &d
	}
	return out
}

// Patch is a shallow set of session fields to merge. Nil fields are left untouched.
type Patch struct {
	Locale        *string
	FreeText      *string
	Lists         map[string][]ListItem
	LastEmergency *EmergencySummary
	LastDistress  *DistressSummary
}

// Apply merges the patch into the session and stamps LastActivity.
// Each list in the patch replaces the cached list of the same name.
func (p Patch) Apply(s *Session, now time.Time) {
	if p.Locale != nil {
		s.Locale = *p.Locale
	}
	if p.FreeText != nil {
		s.FreeText = *p.FreeText
	}
	if len(p.Lists) > 0 {
		if s.Lists == nil {
			s.Lists = make(map[string][]ListItem, len(p.Lists))
		}
		for name, items := range p.Lists {
			s.Lists[name] = append([]ListItem(nil), items...)
		}
	}
	if p.LastEmergency != nil {
		e := *p.LastEmergency
		s.LastEmergency = &e
	}
	if p.LastDistress != nil {
		d := *p.LastDistress
		s.LastDistress = &d
	}
	s.LastActivity = now
}
