package ussd

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/internal/ai"
	"github.com/thebtf/inkingi-ussd/internal/backend"
	"github.com/thebtf/inkingi-ussd/internal/menu"
	"github.com/thebtf/inkingi-ussd/internal/session"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// Backend is the data collaborator used by listings and terminal actions.
type Backend interface {
	ReportEmergency(ctx context.Context, report models.EmergencyReport) (models.Created, error)
	GetEmergencies(ctx context.Context, filter models.ListFilter) (backend.EmergencyPage, error)
	GetEmergencyByID(ctx context.Context, id string) (models.Emergency, error)
	GetUserEmergencies(ctx context.Context, phone string) (backend.EmergencyPage, error)
	TriggerDistress(ctx context.Context, alert models.DistressAlert) (models.Created, error)
	GetPosts(ctx context.Context, filter models.ListFilter) (backend.PostPage, error)
	GetPostByID(ctx context.Context, id string) (models.Post, error)
}

// Guidance is the AI guidance collaborator. It always returns usable text.
type Guidance interface {
	GetGuidance(ctx context.Context, emergencyType models.EmergencyType, question, locale string) ai.Result
}

// Notifier sends fire-and-forget SMS notifications.
type Notifier interface {
	NotifyEmergency(phone, label, referenceID string)
	NotifyDistress(phone, location string)
	NotifyRescueTeams(label, location, reporter string)
}

// Engine replays dialed paths against the menu graph.
type Engine struct {
	catalog    *menu.Catalog
	store      session.Store
	backend    Backend
	dispatcher *Dispatcher
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for reference ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the engine. notifier may be nil.
func NewEngine(catalog *menu.Catalog, store session.Store, data Backend, guidance Guidance, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		store:   store,
		backend: data,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dispatcher = &Dispatcher{
		backend:  data,
		guidance: guidance,
		notifier: notifier,
		store:    store,
		now:      e.now,
	}
	return e
}

// Catalog returns the menu catalog.
func (e *Engine) Catalog() *menu.Catalog { return e.catalog }

// Store returns the session store.
func (e *Engine) Store() session.Store { return e.store }

// Handle computes the reply for one gateway request. It never fails: every
// problem degrades to a CON or END reply.
func (e *Engine) Handle(ctx context.Context, req Request) Reply {
	sess := e.store.Get(ctx, req.SessionID)
	graph := e.catalog.Resolve(sess.LocaleOrDefault())

	tokens := req.Tokens()
	if len(tokens) == 0 {
		return Continue(graph.Prompt(e.catalog.Entry()))
	}

	w := &walk{
		engine:     e,
		ctx:        ctx,
		req:        req,
		tokens:     tokens,
		graph:      graph,
		sess:       sess,
		selections: make(map[string]string),
	}
	return w.run()
}

// walk is the state of one replay.
type walk struct {
	ctx        context.Context
	engine     *Engine
	graph      *menu.Graph
	selections map[string]string
	req        Request
	tokens     []string
	sess       models.Session
}

func (w *walk) last(i int) bool { return i == len(w.tokens)-1 }

func (w *walk) invalid() Reply {
	return Terminate(w.graph.T("responses.invalid_option", nil))
}

func (w *walk) screen(name string) *menu.Screen {
	s, _ := w.engine.catalog.Screen(name)
	return s
}

func (w *walk) run() Reply {
	current := w.screen(w.engine.catalog.Entry())
	// inDetail is set after a list item was selected on a data-driven screen.
	inDetail := false

	for i, tok := range w.tokens {
		last := w.last(i)

		if current.DataDriven() {
			switch {
			case inDetail:
				if tok != "0" {
					return w.invalid()
				}
				inDetail = false
				if last {
					return w.listing(current)
				}
				continue
			case tok == "0":
				reply, next, done := w.follow(menu.Goto(current.Back), i)
				if done {
					return reply
				}
				current = next
				continue
			}
			idx, ok := selectIndex(tok)
			if !ok {
				return w.invalid()
			}
			if last {
				return w.detail(current, idx)
			}
			inDetail = true
			continue
		}

		if current.AcceptsFreeText() {
			if _, ok := current.Lookup(tok); !ok {
				w.capture(tok)
				reply, next, done := w.follow(*current.Continue, i)
				if done {
					return reply
				}
				current = next
				continue
			}
		}

		target, ok := current.Lookup(tok)
		if !ok {
			log.Debug().
				Str("sessionId", w.req.SessionID).
				Str("screen", current.Name).
				Str("token", tok).
				Msg("Invalid option")
			return w.invalid()
		}
		w.selections[current.Name] = tok

		reply, next, done := w.follow(target, i)
		if done {
			return reply
		}
		current = next
	}

	return w.invalid()
}

// follow resolves target for the token at index i. It returns done with the
// reply when the walk ends here, or the next screen otherwise.
func (w *walk) follow(target menu.Target, i int) (Reply, *menu.Screen, bool) {
	last := w.last(i)
	switch target.Kind {
	case menu.KindLanguage:
		w.engine.store.SetLocale(w.ctx, w.req.SessionID, target.Locale)
		w.sess.Locale = target.Locale
		w.graph = w.engine.catalog.Resolve(target.Locale)
		main := w.screen(w.engine.catalog.Main())
		if last {
			return Continue(w.graph.Prompt(main.Name)), nil, true
		}
		return Reply{}, main, false

	case menu.KindAction:
		return w.engine.dispatcher.Invoke(w.ctx, target.Action, w.actionRequest()), nil, true

	case menu.KindData:
		next := w.screen(target.Screen)
		if last {
			return w.listing(next), nil, true
		}
		return Reply{}, next, false

	default:
		next := w.screen(target.Screen)
		if last {
			return Continue(w.graph.Prompt(next.Name)), nil, true
		}
		return Reply{}, next, false
	}
}

// capture stores free text typed on a prose screen.
func (w *walk) capture(tok string) {
	text := strings.TrimSpace(tok)
	if text == "" {
		return
	}
	w.sess.FreeText = text
	w.engine.store.Merge(w.ctx, w.req.SessionID, models.Patch{FreeText: &text})
}

func (w *walk) actionRequest() ActionRequest {
	return ActionRequest{
		SessionID:   w.req.SessionID,
		PhoneNumber: w.req.PhoneNumber,
		Path:        w.req.Text,
		Tokens:      w.tokens,
		Selections:  w.selections,
		Session:     w.sess,
		Graph:       w.graph,
	}
}

// selectIndex parses a 1-based list selection.
func selectIndex(tok string) (int, bool) {
	if len(tok) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 1 || n > models.MaxListItems {
		return 0, false
	}
	return n, true
}
