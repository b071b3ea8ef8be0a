package worker

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/internal/privacy"
	"github.com/thebtf/inkingi-ussd/internal/sms"
	"github.com/thebtf/inkingi-ussd/internal/ussd"
	"github.com/thebtf/inkingi-ussd/internal/worker/sse"
)

// maxBodyBytes caps gateway and webhook bodies.
const maxBodyBytes = 64 << 10

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.NotFound(notFound)

	r.Get("/", s.handleRoot)
	r.Post("/ussd", s.handleUSSD)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/events", s.events.HandleSSE)
	})

	r.Route("/sms", func(r chi.Router) {
		r.Post("/incoming", s.handleIncomingSMS)
		r.Post("/delivery-reports", s.handleDeliveryReport)
	})

	if s.config != nil && s.config.TestRoutes {
		r.Route("/test", func(r chi.Router) {
			r.Post("/send-sms", s.handleTestSMS)
			r.Post("/send-emergency-sms", s.handleTestEmergencySMS)
			r.Post("/send-distress-sms", s.handleTestDistressSMS)
		})
	}
}

func (s *Service) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writePlain(w, http.StatusOK, "Server is Running!")
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// decodeUSSD reads the gateway callback from a form or JSON body.
func decodeUSSD(r *http.Request) (ussd.Request, error) {
	var req ussd.Request
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.SessionID = r.PostForm.Get("sessionId")
	req.ServiceCode = r.PostForm.Get("serviceCode")
	req.PhoneNumber = r.PostForm.Get("phoneNumber")
	req.Text = r.PostForm.Get("text")
	return req, nil
}

func (s *Service) handleUSSD(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeUSSD(r)
	if err != nil || req.SessionID == "" {
		log.Warn().Err(err).Str("requestId", RequestID(r.Context())).Msg("Malformed USSD request")
		s.metrics.record(r.Context(), "error", time.Since(start))
		writePlain(w, http.StatusInternalServerError, "END "+s.translator.T("responses.server_error", nil, ""))
		return
	}

	log.Info().
		Str("requestId", RequestID(r.Context())).
		Str("sessionId", req.SessionID).
		Str("serviceCode", req.ServiceCode).
		Str("phoneNumber", privacy.MaskPhone(req.PhoneNumber)).
		Str("text", privacy.RedactPath(req.Text)).
		Msg("USSD request")

	reply := s.engine.Handle(r.Context(), req)
	elapsed := time.Since(start)
	s.metrics.record(r.Context(), reply.Outcome(), elapsed)
	go s.events.Publish(sse.Event{
		Type:      sse.EventRequest,
		SessionID: req.SessionID,
		Phone:     privacy.MaskPhone(req.PhoneNumber),
		Outcome:   reply.Outcome(),
		Depth:     len(req.Tokens()),
		Millis:    elapsed.Milliseconds(),
	})

	writePlain(w, http.StatusOK, reply.String())
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Backend  string `json:"backend"`
	Sessions string `json:"sessions"`
	Uptime   string `json:"uptime"`
	Ready    bool   `json:"ready"`
	AI       bool   `json:"ai"`
	SMS      bool   `json:"sms"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Backend:  "ok",
		Sessions: "memory",
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Ready:    s.ready.Load(),
		AI:       s.aiEnabled,
		SMS:      s.notifier.Enabled(),
	}
	if s.config != nil && s.config.SessionBackend != "" {
		resp.Sessions = s.config.SessionBackend
	}
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Backend health check failed")
			resp.Backend = "unreachable"
			resp.Status = "degraded"
		}
	}
	status := http.StatusOK
	if !resp.Ready {
		resp.Status = "starting"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleIncomingSMS logs messages sent to the short code.
func (s *Service) handleIncomingSMS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writePlain(w, http.StatusBadRequest, "Bad Request")
		return
	}
	from := r.PostForm.Get("from")
	log.Info().
		Str("from", privacy.MaskPhone(from)).
		Str("to", r.PostForm.Get("to")).
		Str("text", privacy.Clean(r.PostForm.Get("text"))).
		Str("date", r.PostForm.Get("date")).
		Str("id", r.PostForm.Get("id")).
		Msg("Incoming SMS")
	go s.events.Publish(sse.Event{Type: sse.EventSMS, Phone: privacy.MaskPhone(from)})
	writePlain(w, http.StatusOK, "OK")
}

// handleDeliveryReport logs delivery status callbacks.
func (s *Service) handleDeliveryReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writePlain(w, http.StatusBadRequest, "Bad Request")
		return
	}
	ev := log.Info()
	if reason := r.PostForm.Get("failureReason"); reason != "" {
		ev = log.Warn().Str("failureReason", reason)
	}
	ev.Str("id", r.PostForm.Get("id")).
		Str("status", r.PostForm.Get("status")).
		Str("phoneNumber", privacy.MaskPhone(r.PostForm.Get("phoneNumber"))).
		Str("networkCode", r.PostForm.Get("networkCode")).
		Msg("SMS delivery report")
	writePlain(w, http.StatusOK, "OK")
}

// testSMSRequest is the body of the /test/* routes.
type testSMSRequest struct {
	PhoneNumber   string `json:"phoneNumber"`
	Message       string `json:"message"`
	EmergencyType string `json:"emergencyType"`
	ReferenceID   string `json:"referenceId"`
	Location      string `json:"location"`
}

func (s *Service) handleTestSMS(w http.ResponseWriter, r *http.Request) {
	s.testSend(w, r, func(req testSMSRequest) string { return req.Message })
}

func (s *Service) handleTestEmergencySMS(w http.ResponseWriter, r *http.Request) {
	s.testSend(w, r, func(req testSMSRequest) string {
		label := req.EmergencyType
		if label == "" {
			label = "Fire"
		}
		ref := req.ReferenceID
		if ref == "" {
			ref = ussd.NewReferenceID(time.Now())
		}
		return sms.EmergencyConfirmation(label, ref)
	})
}

func (s *Service) handleTestDistressSMS(w http.ResponseWriter, r *http.Request) {
	s.testSend(w, r, func(req testSMSRequest) string { return sms.DistressAlert(req.Location) })
}

func (s *Service) testSend(w http.ResponseWriter, r *http.Request, message func(testSMSRequest) string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req testSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
		return
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	text := message(req)
	if req.PhoneNumber == "" || text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "phoneNumber and message are required"})
		return
	}

	res, err := s.notifier.Send(r.Context(), req.PhoneNumber, text)
	if err != nil {
		log.Warn().Err(err).Str("phoneNumber", privacy.MaskPhone(req.PhoneNumber)).Msg("Test SMS failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": text, "result": res})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
