package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thebtf/inkingi-ussd/internal/ai"
	"github.com/thebtf/inkingi-ussd/internal/backend"
	"github.com/thebtf/inkingi-ussd/internal/config"
	"github.com/thebtf/inkingi-ussd/internal/i18n"
	"github.com/thebtf/inkingi-ussd/internal/menu"
	"github.com/thebtf/inkingi-ussd/internal/session"
	"github.com/thebtf/inkingi-ussd/internal/sms"
	"github.com/thebtf/inkingi-ussd/internal/ussd"
	"github.com/thebtf/inkingi-ussd/internal/worker/sse"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// stubBackend answers every call with empty data, or fails when down is set.
type stubBackend struct {
	down bool
}

func (b *stubBackend) err() error {
	if b.down {
		return errors.New("backend down")
	}
	return nil
}

func (b *stubBackend) ReportEmergency(context.Context, models.EmergencyReport) (models.Created, error) {
	return models.Created{ID: "em-1"}, b.err()
}

func (b *stubBackend) GetEmergencies(context.Context, models.ListFilter) (backend.EmergencyPage, error) {
	return backend.EmergencyPage{}, b.err()
}

func (b *stubBackend) GetEmergencyByID(context.Context, string) (models.Emergency, error) {
	return models.Emergency{}, backend.ErrNotFound
}

func (b *stubBackend) GetUserEmergencies(context.Context, string) (backend.EmergencyPage, error) {
	return backend.EmergencyPage{}, b.err()
}

func (b *stubBackend) TriggerDistress(context.Context, models.DistressAlert) (models.Created, error) {
	return models.Created{ID: "d-1"}, b.err()
}

func (b *stubBackend) GetPosts(context.Context, models.ListFilter) (backend.PostPage, error) {
	return backend.PostPage{}, b.err()
}

func (b *stubBackend) GetPostByID(context.Context, string) (models.Post, error) {
	return models.Post{}, backend.ErrNotFound
}

func (b *stubBackend) Ping(context.Context) error { return b.err() }

type recordingSender struct {
	messages []string
	to       []string
	mu       sync.Mutex
}

func (r *recordingSender) Send(_ context.Context, to []string, message string, _ bool) (sms.SendResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, to...)
	r.messages = append(r.messages, message)
	return sms.SendResult{Message: "Sent to 1/1"}, nil
}

// testService creates a Service backed by an in-memory store and stub collaborators.
func testService(t *testing.T, cfg *config.Config) (*Service, *stubBackend, *recordingSender) {
	t.Helper()

	if cfg == nil {
		cfg = config.Default()
	}
	tr, err := i18n.New("")
	require.NoError(t, err)

	data := &stubBackend{}
	sender := &recordingSender{}
	notifier := sms.NewNotifier(sender, nil)
	store := session.NewMemoryStore(time.Minute)

	svc := &Service{
		version:    "test-version",
		config:     cfg,
		translator: tr,
		pinger:     data,
		notifier:   notifier,
		sweeper:    session.NewSweeper(store, time.Minute),
		events:     sse.NewBroadcaster(),
		metrics:    newRequestMetrics(),
		router:     chi.NewRouter(),
		startTime:  time.Now(),
		engine:     ussd.NewEngine(menu.Default(tr), store, data, ai.NewService(nil, ""), notifier),
	}
	svc.setupRoutes()

	// Mark service as ready for tests
	svc.ready.Store(true)

	t.Cleanup(notifier.Wait)
	return svc, data, sender
}

func postForm(svc *Service, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func postJSON(svc *Service, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func ussdForm(sessionID, text string) url.Values {
	return url.Values{
		"sessionId":   {sessionID},
		"serviceCode": {"*384#"},
		"phoneNumber": {"+250788000111"},
		"text":        {text},
	}
}

func TestHandleRoot(t *testing.T) {
	svc, _, _ := testService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Server is Running!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHandleUSSD_Form(t *testing.T) {
	svc, _, _ := testService(t, nil)

	rec := postForm(svc, "/ussd", ussdForm("ATUid_1", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "CON Welcome to INKINGI Rescue"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = postForm(svc, "/ussd", ussdForm("ATUid_1", "1*3"))
	assert.Equal(t, "CON Hotlines\n1. Police - 112\n2. Fire - 113\n3. Ambulance - 114\n0. Go back", rec.Body.String())
}

func TestHandleUSSD_JSON(t *testing.T) {
	svc, _, _ := testService(t, nil)

	rec := postJSON(svc, "/ussd", `{"sessionId":"s-json","serviceCode":"*384#","phoneNumber":"+250788000111","text":"1*4*1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "END DISTRESS ALERT ACTIVATED!"))
}

func TestHandleUSSD_Malformed(t *testing.T) {
	svc, _, _ := testService(t, nil)

	tests := []struct {
		name string
		rec  *httptest.ResponseRecorder
	}{
		{name: "missing session id", rec: postForm(svc, "/ussd", url.Values{"text": {"1"}})},
		{name: "invalid json", rec: postJSON(svc, "/ussd", `{"sessionId":`)},
		{name: "json array", rec: postJSON(svc, "/ussd", `["s1"]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusInternalServerError, tt.rec.Code)
			assert.Equal(t, "END An error occurred. Please try again later.", tt.rec.Body.String())
		})
	}
}

func TestHandleUSSD_BackendDownIsMasked(t *testing.T) {
	svc, data, sender := testService(t, nil)
	data.down = true

	rec := postForm(svc, "/ussd", ussdForm("s1", "1*1*2*1*Smoke everywhere*1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "END Your emergency has been reported."))
	assert.Contains(t, body, "Reference: INK")
	assert.NotContains(t, body, "backend down")

	svc.notifier.Wait()
	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Your Fire emergency has been reported successfully")
}

func TestHandleUSSD_PublishesEvent(t *testing.T) {
	svc, _, _ := testService(t, nil)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	_, err := svc.events.AddClient(w)
	require.NoError(t, err)

	postForm(svc, "/ussd", ussdForm("s-feed", "1"))

	assert.Eventually(t, func() bool {
		body := w.Body()
		return strings.Contains(body, `"sessionId":"s-feed"`) && strings.Contains(body, `"phone":"***111"`)
	}, time.Second, 10*time.Millisecond)
}

// flushRecorder is a goroutine-safe flushable recorder.
type flushRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (f *flushRecorder) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(b)
}

func (f *flushRecorder) Flush() {}

func (f *flushRecorder) Body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Body.String()
}

func TestHandleHealth(t *testing.T) {
	svc, data, _ := testService(t, nil)

	get := func() (*httptest.ResponseRecorder, HealthResponse) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		svc.router.ServeHTTP(rec, req)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec, resp
	}

	rec, resp := get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.Equal(t, "memory", resp.Sessions)
	assert.True(t, resp.SMS)
	assert.False(t, resp.AI)

	data.down = true
	_, resp = get()
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unreachable", resp.Backend)

	svc.ready.Store(false)
	rec, resp = get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "starting", resp.Status)
}

func TestHandleVersion(t *testing.T) {
	svc, _, _ := testService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"test-version"}`, rec.Body.String())
}

func TestNotFound(t *testing.T) {
	svc, _, _ := testService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "END Service not found.", rec.Body.String())
}

func TestSMSWebhooks(t *testing.T) {
	svc, _, _ := testService(t, nil)

	rec := postForm(svc, "/sms/incoming", url.Values{"from": {"+250788000111"}, "to": {"384"}, "text": {"help"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = postForm(svc, "/sms/delivery-reports", url.Values{"id": {"ATXid_1"}, "status": {"Failed"}, "failureReason": {"InsufficientCredit"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTestRoutes_Disabled(t *testing.T) {
	svc, _, _ := testService(t, nil)

	rec := postJSON(svc, "/test/send-sms", `{"phoneNumber":"+250788000111","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestRoutes_Enabled(t *testing.T) {
	cfg := config.Default()
	cfg.TestRoutes = true
	svc, _, sender := testService(t, cfg)

	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		contains string
	}{
		{name: "plain", path: "/test/send-sms", body: `{"phoneNumber":"+250788000111","message":"hi"}`, status: http.StatusOK, contains: "hi"},
		{name: "emergency", path: "/test/send-emergency-sms", body: `{"phoneNumber":"+250788000111","emergencyType":"Medical","referenceId":"INK12345678"}`,
			status: http.StatusOK, contains: "Your Medical emergency has been reported successfully. Reference: INK12345678."},
		{name: "distress", path: "/test/send-distress-sms", body: `{"phoneNumber":"+250788000111","location":"Nyamirambo"}`,
			status: http.StatusOK, contains: "Your location: Nyamirambo."},
		{name: "missing phone", path: "/test/send-sms", body: `{"message":"hi"}`, status: http.StatusBadRequest},
		{name: "bad json", path: "/test/send-sms", body: `nope`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(svc, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.contains == "" {
				return
			}
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, true, resp["success"])
			assert.Contains(t, resp["message"], tt.contains)
		})
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.messages, 3)
}

func TestRecoverer(t *testing.T) {
	h := requestID(recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ussd", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "END An error occurred. Please try again later.", rec.Body.String())
}

func TestRequestID_Propagates(t *testing.T) {
	var seen string
	h := requestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}
