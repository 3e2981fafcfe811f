package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/db"
	"github.com/USA-RedDragon/crashgate/internal/db/models"
	"github.com/USA-RedDragon/crashgate/internal/events"
	"github.com/USA-RedDragon/crashgate/internal/gate"
	"github.com/USA-RedDragon/crashgate/internal/server"
	v1 "github.com/USA-RedDragon/crashgate/internal/server/apimodels/v1"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.ReportEvent
}

func (f *fakePublisher) Publish(_ string, data []byte) error {
	var event events.ReportEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Unix(1700000000, 0)
}

type harness struct {
	router    *server.Router
	publisher *fakePublisher
	bus       *events.EventBus
	db        *gorm.DB
}

func newHarness(t *testing.T, withDB bool, modify func(*config.Config)) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Reporting.Database = "fred"
	cfg.Reporting.Application = "Game"
	cfg.Reporting.Version = "1.0"
	cfg.Reporting.CapturePlayerLog = true
	cfg.Reporting.CaptureScreenshots = true
	if modify != nil {
		modify(cfg)
	}

	h := &harness{publisher: &fakePublisher{}}
	h.bus = events.NewEventBus(h.publisher, "crashgate.reports", 10)
	h.bus.Start()

	if withDB {
		cfg.Persistence.Database.Driver = config.DatabaseDriverSQLite
		cfg.Persistence.Database.Database = filepath.Join(t.TempDir(), "history.db")
		database, err := db.MakeDB(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Cleanup(func() { _ = db.Close(database) })
		h.db = database
	}

	submissionGate := gate.New(gate.Settings{
		PostExceptionsInEditor: cfg.Reporting.PostExceptionsInEditor,
	}, gate.NewRateLimiter(gate.DefaultWindow, fixedClock{}))
	h.router = server.NewRouter(cfg, server.Deps{Gate: submissionGate, Events: h.bus, DB: h.db})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) postEvent(t *testing.T, req v1.POSTEventRequest) v1.POSTEventResponse {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/v1/events", req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var resp v1.POSTEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false, nil)
	w := h.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("unexpected health response %d %q", w.Code, w.Body.String())
	}
	if w := h.do(t, http.MethodGet, "/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unexpected status %d", w.Code)
	}
}

func TestPostEventRateLimited(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false, nil)

	first := h.postEvent(t, v1.POSTEventRequest{Kind: "exception", Type: "NullReferenceException", Message: "boom"})
	if !first.Submit || first.Reason != string(gate.ReasonAccepted) || first.ReportID == "" {
		t.Errorf("first exception should be accepted, got %+v", first)
	}
	if len(first.Attachments) != 2 || first.Attachments[0] != "player_log" || first.Attachments[1] != "screenshot" {
		t.Errorf("unexpected attachments %v", first.Attachments)
	}

	second := h.postEvent(t, v1.POSTEventRequest{Kind: "exception", Type: "NullReferenceException"})
	if second.Submit || second.Reason != string(gate.ReasonRateLimited) {
		t.Errorf("second exception inside the window should be rate limited, got %+v", second)
	}
	if len(second.Attachments) != 0 {
		t.Errorf("rejected events get no attachments, got %v", second.Attachments)
	}

	if err := h.bus.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.publisher.mu.Lock()
	defer h.publisher.mu.Unlock()
	if len(h.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(h.publisher.events))
	}
	published := h.publisher.events[0]
	if published.ReportID != first.ReportID || published.Database != "fred" || published.Application != "Game" || published.Type != "NullReferenceException" {
		t.Errorf("unexpected published event %+v", published)
	}
}

func TestPostEventNonError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false, nil)

	resp := h.postEvent(t, v1.POSTEventRequest{Kind: "log", Severity: "warning", Message: "careful"})
	if resp.Submit || resp.Reason != string(gate.ReasonNotError) {
		t.Errorf("warnings must not be submitted, got %+v", resp)
	}
	// The limiter was not consumed by the warning.
	resp = h.postEvent(t, v1.POSTEventRequest{Kind: "log", Severity: "error", Message: "broken"})
	if !resp.Submit {
		t.Errorf("error log should be accepted, got %+v", resp)
	}
}

func TestPostEventEditor(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false, nil)
	resp := h.postEvent(t, v1.POSTEventRequest{Kind: "exception", Editor: true})
	if resp.Submit || resp.Reason != string(gate.ReasonEditor) {
		t.Errorf("editor events are disabled by default, got %+v", resp)
	}

	h = newHarness(t, false, func(c *config.Config) {
		c.Reporting.PostExceptionsInEditor = true
		c.Reporting.CaptureEditorLog = true
	})
	resp = h.postEvent(t, v1.POSTEventRequest{Kind: "exception", Editor: true})
	if !resp.Submit {
		t.Errorf("editor event should be accepted, got %+v", resp)
	}
	if len(resp.Attachments) != 2 || resp.Attachments[0] != "editor_log" {
		t.Errorf("unexpected attachments %v", resp.Attachments)
	}
}

func TestPostEventBadBody(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unexpected status %d", w.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false, nil)
	for _, path := range []string{"/api/v1/uploads", "/api/v1/reports", "/api/v1/uploads/1"} {
		if w := h.do(t, http.MethodGet, path, nil); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: unexpected status %d", path, w.Code)
		}
	}
}

func TestReportHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true, nil)

	accepted := h.postEvent(t, v1.POSTEventRequest{Kind: "exception", Type: "IOException"})
	h.postEvent(t, v1.POSTEventRequest{Kind: "exception", Type: "IOException"})

	w := h.do(t, http.MethodGet, "/api/v1/reports", nil)
	var all v1.GETReportsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all.Reports) != 2 {
		t.Errorf("got %d reports, want 2", len(all.Reports))
	}

	w = h.do(t, http.MethodGet, "/api/v1/reports?submitted=true", nil)
	var submitted v1.GETReportsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatal(err)
	}
	if len(submitted.Reports) != 1 || submitted.Reports[0].ReportID != accepted.ReportID {
		t.Errorf("unexpected submitted reports %+v", submitted.Reports)
	}

	w = h.do(t, http.MethodGet, "/api/v1/reports/"+accepted.ReportID, nil)
	var report models.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || report.Type != "IOException" || !report.Submitted || report.Database != "fred" {
		t.Errorf("unexpected report %d %+v", w.Code, report)
	}
	if w := h.do(t, http.MethodGet, "/api/v1/reports/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unexpected status %d", w.Code)
	}
}

func TestUploadHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true, nil)
	for _, name := range []string{"fred", "fred", "barney"} {
		record := &models.UploadRecord{
			Database:    name,
			Application: "Game",
			Version:     "1.0",
			Status:      models.UploadStatusSucceeded,
			Artifacts:   []models.UploadedArtifact{{Name: "game.pdb", Size: 10, StatusCode: http.StatusOK}},
		}
		if err := models.CreateUploadRecord(h.db, record); err != nil {
			t.Fatal(err)
		}
	}

	w := h.do(t, http.MethodGet, "/api/v1/uploads?database=fred&limit=1", nil)
	var page v1.GETUploadsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Uploads) != 1 || page.Uploads[0].Database != "fred" {
		t.Errorf("unexpected page %+v", page)
	}
	if len(page.Uploads[0].Artifacts) != 1 {
		t.Errorf("artifacts should be included, got %+v", page.Uploads[0])
	}

	w = h.do(t, http.MethodGet, "/api/v1/uploads/3", nil)
	var record models.UploadRecord
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || record.Database != "barney" {
		t.Errorf("unexpected upload %d %+v", w.Code, record)
	}

	for path, code := range map[string]int{
		"/api/v1/uploads/99":       http.StatusNotFound,
		"/api/v1/uploads/abc":      http.StatusBadRequest,
		"/api/v1/uploads?limit=-1": http.StatusBadRequest,
		"/api/v1/uploads?offset=x": http.StatusBadRequest,
	} {
		if w := h.do(t, http.MethodGet, path, nil); w.Code != code {
			t.Errorf("%s: got status %d, want %d", path, w.Code, code)
		}
	}
}
