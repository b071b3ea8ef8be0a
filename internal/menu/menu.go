// Package menu defines the USSD screen graph and renders it per locale.
package menu

import (
	"fmt"
	"strings"

	"github.com/thebtf/inkingi-ussd/internal/i18n"
)

// TargetKind identifies the variant of a Target.
type TargetKind int

const (
	// KindScreen moves to another static screen.
	KindScreen TargetKind = iota
	// KindData moves to a screen built from an external fetch.
	KindData
	// KindLanguage stores a new session locale and moves to the main menu.
	KindLanguage
	// KindAction ends the session through a terminal action.
	KindAction
)

func (k TargetKind) String() string {
	switch k {
	case KindScreen:
		return "screen"
	case KindData:
		return "data"
	case KindLanguage:
		return "language"
	case KindAction:
		return "action"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// Action names a terminal action.
type Action string

const (
	ActionSubmitEmergency Action = "submitEmergency"
	ActionConfirmDistress Action = "confirmDistress"
	ActionAIGuidance      Action = "getAIGuidance"
	ActionCustomAI        Action = "customAIRequest"
)

// Target is where a keystroke leads. Only the field matching Kind is set.
type Target struct {
	Screen string
	Locale string
	Action Action
	Kind   TargetKind
}

// Goto targets an ordinary screen.
func Goto(screen string) Target { return Target{Kind: KindScreen, Screen: screen} }

// GotoData targets a data-driven screen.
func GotoData(screen string) Target { return Target{Kind: KindData, Screen: screen} }

// SetLanguage targets a locale change.
func SetLanguage(locale string) Target { return Target{Kind: KindLanguage, Locale: locale} }

// Invoke targets a terminal action.
func Invoke(action Action) Target { return Target{Kind: KindAction, Action: action} }

func (t Target) String() string {
	switch t.Kind {
	case KindScreen, KindData:
		return t.Kind.String() + ":" + t.Screen
	case KindLanguage:
		return "language:" + t.Locale
	case KindAction:
		return "action:" + string(t.Action)
	default:
		return t.Kind.String()
	}
}

// Option is one enumerated keystroke of a screen.
type Option struct {
	Params   i18n.Params
	Key      string
	LabelKey string
	Target   Target
}

// Screen is a node of the menu graph.
//
// A Screen with Continue set accepts free text: input that matches no option
// is captured and the walk moves to Continue. A Screen with List set is
// data-driven: its body comes from a fetch whose results are cached under List,
// and Back is where "0" leads from the listing.
type Screen struct {
	Continue *Target
	Name     string
	TitleKey string
	BodyKey  string
	List     string
	Back     string
	Options  []Option
}

// AcceptsFreeText reports whether the screen captures prose.
func (s *Screen) AcceptsFreeText() bool { return s.Continue != nil }

// DataDriven reports whether the screen is built from an external fetch.
func (s *Screen) DataDriven() bool { return s.List != "" }

// Lookup resolves a keystroke against the enumerated options.
func (s *Screen) Lookup(key string) (Target, bool) {
	for _, opt := range s.Options {
		if opt.Key == key {
			return opt.Target, true
		}
	}
	return Target{}, false
}

// Translator is the translation lookup used to render prompts.
type Translator interface {
	T(key string, params i18n.Params, locale string) string
}

// Catalog is the locale-independent screen graph.
type Catalog struct {
	tr      Translator
	screens map[string]*Screen
	entry   string
	main    string
}

// NewCatalog builds a catalog from screens. entry is the first-contact screen
// and main is where language changes land.
func NewCatalog(tr Translator, entry, main string, screens []*Screen) (*Catalog, error) {
	c := &Catalog{
		tr:      tr,
		screens: make(map[string]*Screen, len(screens)),
		entry:   entry,
		main:    main,
	}
	for _, s := range screens {
		if _, dup := c.screens[s.Name]; dup {
			return nil, fmt.Errorf("duplicate screen %q", s.Name)
		}
		c.screens[s.Name] = s
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	for _, name := range []string{c.entry, c.main} {
		if _, ok := c.screens[name]; !ok {
			return fmt.Errorf("screen %q not defined", name)
		}
	}
	check := func(from string, t Target) error {
		switch t.Kind {
		case KindScreen, KindData:
			dst, ok := c.screens[t.Screen]
			if !ok {
				return fmt.Errorf("screen %q: target %s not defined", from, t)
			}
			if t.Kind == KindData && !dst.DataDriven() {
				return fmt.Errorf("screen %q: target %s is not data-driven", from, t)
			}
		case KindAction:
			if t.Action == "" {
				return fmt.Errorf("screen %q: empty action", from)
			}
		case KindLanguage:
			if !i18n.IsSupported(t.Locale) {
				return fmt.Errorf("screen %q: unsupported locale %q", from, t.Locale)
			}
		}
		return nil
	}
	for name, s := range c.screens {
		if s.DataDriven() {
			if _, ok := c.screens[s.Back]; !ok {
				return fmt.Errorf("screen %q: back screen %q not defined", name, s.Back)
			}
		}
		for _, opt := range s.Options {
			if err := check(name, opt.Target); err != nil {
				return err
			}
		}
		if s.Continue != nil {
			if err := check(name, *s.Continue); err != nil {
				return err
			}
		}
	}
	return nil
}

// Entry returns the first-contact screen name.
func (c *Catalog) Entry() string { return c.entry }

// Main returns the main menu screen name.
func (c *Catalog) Main() string { return c.main }

// Screen returns the screen with the given name.
func (c *Catalog) Screen(name string) (*Screen, bool) {
	s, ok := c.screens[name]
	return s, ok
}

// T translates through the catalog's translator.
func (c *Catalog) T(key string, params i18n.Params, locale string) string {
	return c.tr.T(key, params, locale)
}

// Resolve renders every static screen prompt for locale. Unrecognized locales
// render in the default locale.
func (c *Catalog) Resolve(locale string) *Graph {
	locale = i18n.Normalize(locale)
	g := &Graph{
		Locale:  locale,
		catalog: c,
		prompts: make(map[string]string, len(c.screens)),
	}
	for name, s := range c.screens {
		if s.DataDriven() {
			continue
		}
		g.prompts[name] = c.render(s, locale)
	}
	return g
}

func (c *Catalog) render(s *Screen, locale string) string {
	var b strings.Builder
	b.WriteString(c.tr.T(s.TitleKey, nil, locale))
	if s.BodyKey != "" {
		b.WriteString("\n")
		b.WriteString(c.tr.T(s.BodyKey, nil, locale))
	}
	for _, opt := range s.Options {
		fmt.Fprintf(&b, "\n%s. %s", opt.Key, c.tr.T(opt.LabelKey, opt.Params, locale))
	}
	return b.String()
}

// Graph is a catalog rendered for one locale.
type Graph struct {
	catalog *Catalog
	prompts map[string]string
	Locale  string
}

// Screen returns the structural screen definition.
func (g *Graph) Screen(name string) (*Screen, bool) {
	return g.catalog.Screen(name)
}

// Prompt returns the rendered prompt of a static screen, or "" for unknown
// and data-driven screens.
func (g *Graph) Prompt(name string) string {
	return g.prompts[name]
}

// T translates key in the graph's locale.
func (g *Graph) T(key string, params i18n.Params) string {
	return g.catalog.tr.T(key, params, g.Locale)
}
