package ussd

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/internal/ai"
	"github.com/thebtf/inkingi-ussd/internal/i18n"
	"github.com/thebtf/inkingi-ussd/internal/menu"
	"github.com/thebtf/inkingi-ussd/internal/session"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// Fixed payload values until handsets report a location.
const (
	PendingLocation = "Location to be determined"
	DistressMessage = "Urgent help needed!"
	StatusPending   = "pending"
)

// ActionRequest is the context handed to a terminal action.
type ActionRequest struct {
	// Selections holds the key pressed on each screen during the walk.
	Selections  map[string]string
	Graph       *menu.Graph
	SessionID   string
	PhoneNumber string
	Path        string
	Tokens      []string
	Session     models.Session
}

// Locale is the locale the action renders in.
func (r ActionRequest) Locale() string {
	if r.Graph != nil {
		return r.Graph.Locale
	}
	return r.Session.LocaleOrDefault()
}

func (r ActionRequest) lastToken() string {
	if len(r.Tokens) == 0 {
		return ""
	}
	return r.Tokens[len(r.Tokens)-1]
}

// Dispatcher executes terminal actions. Collaborator failures are logged and
// masked; every action returns an END reply.
type Dispatcher struct {
	backend  Backend
	guidance Guidance
	notifier Notifier
	store    session.Store
	now      func() time.Time
}

// Invoke runs action.
func (d *Dispatcher) Invoke(ctx context.Context, action menu.Action, req ActionRequest) Reply {
	log.Info().
		Str("sessionId", req.SessionID).
		Str("action", string(action)).
		Msg("Terminal action")

	switch action {
	case menu.ActionSubmitEmergency:
		return d.submitEmergency(ctx, req)
	case menu.ActionConfirmDistress:
		return d.confirmDistress(ctx, req)
	case menu.ActionAIGuidance:
		t, ok := models.GuidanceTypes[req.Selections[menu.AIAssistance]]
		if !ok {
			t = models.EmergencyOther
		}
		return d.guide(ctx, req, action, t, "")
	case menu.ActionCustomAI:
		question := strings.TrimSpace(req.lastToken())
		if question == "" {
			// Session.FreeText belongs to the report flow; ask again instead.
			return Continue(req.Graph.Prompt(menu.CustomAIRequest))
		}
		return d.guide(ctx, req, action, "", question)
	default:
		log.Error().Str("action", string(action)).Msg("Unknown terminal action")
		return Terminate(req.Graph.T("responses.invalid_option", nil))
	}
}

// emergencyKind resolves the reported type from the report screen selection,
// falling back to the first path token that names a type. The selection wins
// over the path scan because the welcome screen's language key "1" would
// otherwise always read as fire.
func emergencyKind(req ActionRequest) (models.EmergencyKind, bool) {
	if key, ok := req.Selections[menu.ReportEmergency]; ok {
		if kind, ok := models.ReportTypes[key]; ok {
			return kind, true
		}
	}
	for _, tok := range req.Tokens {
		if kind, ok := models.ReportTypes[tok]; ok {
			return kind, true
		}
	}
	return models.OtherEmergency, false
}

func (d *Dispatcher) submitEmergency(ctx context.Context, req ActionRequest) Reply {
	now := d.now()
	ref := NewReferenceID(now)
	kind, known := emergencyKind(req)

	description := req.Session.FreeText
	if description == "" {
		description = kind.Label + " emergency reported via USSD"
	}

	report := models.EmergencyReport{
		PhoneNumber:   req.PhoneNumber,
		EmergencyType: kind.Type,
		ReferenceID:   ref,
		Description:   description,
		Location:      PendingLocation,
		Status:        StatusPending,
		ReportedAt:    now.UTC().Format(time.RFC3339),
	}

	label := req.Graph.T("listing.emergency", nil)
	if known {
		label = req.Graph.T("report.types."+string(kind.Type), nil)
	}
	reference := req.Graph.T("submit.reference", i18n.Params{"ref": ref})

	created, err := d.backend.ReportEmergency(ctx, report)
	if d.notifier != nil {
		d.notifier.NotifyEmergency(req.PhoneNumber, kind.Label, ref)
	}
	if err != nil {
		log.Error().Err(err).
			Str("sessionId", req.SessionID).
			Str("referenceId", ref).
			Msg("Failed to report emergency to backend")
		recordFailure(ctx, "backend")
		recordAction(ctx, string(menu.ActionSubmitEmergency), false)
		return Terminate(strings.Join([]string{
			req.Graph.T("submit.reported", nil),
			reference,
			req.Graph.T("submit.help_on_way", nil),
		}, "\n\n"))
	}

	log.Info().
		Str("sessionId", req.SessionID).
		Str("referenceId", ref).
		Str("backendId", created.ID).
		Str("type", string(kind.Type)).
		Msg("Emergency reported")

	d.store.Merge(ctx, req.SessionID, models.Patch{LastEmergency: &models.EmergencySummary{
		ReferenceID: ref,
		Type:        string(kind.Type),
		PhoneNumber: req.PhoneNumber,
		BackendID:   created.ID,
		Timestamp:   now,
	}})
	if d.notifier != nil {
		d.notifier.NotifyRescueTeams(kind.Label, PendingLocation, req.PhoneNumber)
	}
	recordAction(ctx, string(menu.ActionSubmitEmergency), true)

	return Terminate(strings.Join([]string{
		req.Graph.T("submit.thank_you", i18n.Params{"label": label}),
		reference,
		req.Graph.T("submit.sms_sent", nil),
	}, "\n\n"))
}

func (d *Dispatcher) confirmDistress(ctx context.Context, req ActionRequest) Reply {
	now := d.now()
	ref := NewReferenceID(now)
	reference := req.Graph.T("submit.reference", i18n.Params{"ref": ref})
	activated := req.Graph.T("distress.activated", nil)
	helpOnWay := req.Graph.T("distress.help_on_way", nil)

	created, err := d.backend.TriggerDistress(ctx, models.DistressAlert{
		PhoneNumber: req.PhoneNumber,
		Message:     DistressMessage,
		Location:    PendingLocation,
	})
	if d.notifier != nil {
		d.notifier.NotifyDistress(req.PhoneNumber, PendingLocation)
	}
	if err != nil {
		log.Error().Err(err).
			Str("sessionId", req.SessionID).
			Str("referenceId", ref).
			Msg("Failed to send distress alert to backend")
		recordFailure(ctx, "backend")
		recordAction(ctx, string(menu.ActionConfirmDistress), false)
		return Terminate(strings.Join([]string{activated, reference, helpOnWay}, "\n\n"))
	}

	d.store.Merge(ctx, req.SessionID, models.Patch{LastDistress: &models.DistressSummary{
		ReferenceID: ref,
		PhoneNumber: req.PhoneNumber,
		BackendID:   created.ID,
		Timestamp:   now,
	}})
	recordAction(ctx, string(menu.ActionConfirmDistress), true)

	return Terminate(strings.Join([]string{
		activated,
		reference,
		req.Graph.T("distress.notified", nil) + " " + helpOnWay,
	}, "\n\n"))
}

func (d *Dispatcher) guide(ctx context.Context, req ActionRequest, action menu.Action, t models.EmergencyType, question string) Reply {
	locale := req.Locale()
	res := d.guidance.GetGuidance(ctx, t, question, locale)
	if !res.Success {
		recordFailure(ctx, "ai")
	}
	guidance := strings.TrimSpace(res.Guidance)
	if guidance == "" {
		guidance = ai.DefaultGuidance(t, locale)
	}
	recordAction(ctx, string(action), res.Success)

	return Terminate(strings.Join([]string{
		req.Graph.T("ai_assistance.guidance_title", nil),
		guidance,
		req.Graph.T("ai_assistance.stay_safe", nil),
	}, "\n\n"))
}
