package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sambabiba/shinbis-calendar/internal/app"
	"github.com/sambabiba/shinbis-calendar/internal/assist"
	"github.com/sambabiba/shinbis-calendar/internal/config"
	"github.com/sambabiba/shinbis-calendar/internal/model"
	"github.com/sambabiba/shinbis-calendar/internal/store"
)

const testKey = "AIzaSyTest0000000000000000000000000000"

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()

	staticDir := t.TempDir()
	index := "<html><head><title>Calendar</title></head><body></body></html>"
	if err := os.WriteFile(filepath.Join(staticDir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.StaticDir = staticDir
	cfg.Gemini.APIKey = apiKey

	assistant := assist.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, apiKey)
	ctrl := app.New(store.New(store.NewMemoryBlob()), assistant, time.Now)
	return NewServer(cfg, ctrl)
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIndexInjectsKey(t *testing.T) {
	s := newTestServer(t, testKey)

	w := doJSON(t, s.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "window.GEMINI_API_KEY = '"+testKey+"'") {
		t.Errorf("key not injected:\n%s", body)
	}
	// The script lands inside the head, before it closes.
	if strings.Index(body, "window.GEMINI_API_KEY") > strings.Index(body, "</head>") {
		t.Error("injection landed after </head>")
	}
}

func TestIndexInjectsEmptyKey(t *testing.T) {
	s := newTestServer(t, "")

	w := doJSON(t, s.Handler(), http.MethodGet, "/index.html", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "window.GEMINI_API_KEY = ''") {
		t.Error("missing empty-key injection")
	}
}

func TestKeyScriptEscapes(t *testing.T) {
	out := keyScript(`AIza'</script><script>alert(1)`)
	if strings.Contains(out, "</script><script>") {
		t.Fatalf("markup breakout possible: %q", out)
	}
	if !strings.Contains(out, `\'`) {
		t.Errorf("quote not escaped: %q", out)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	w := doJSON(t, s.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestMonthEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	w := doJSON(t, s.Handler(), http.MethodGet, "/api/month?year=2024&month=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Year  int               `json:"year"`
		Month int               `json:"month"`
		Cells []json.RawMessage `json:"cells"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Year != 2024 || resp.Month != 2 {
		t.Errorf("year/month = %d/%d", resp.Year, resp.Month)
	}
	if len(resp.Cells) != 42 {
		t.Fatalf("cells = %d, want 42", len(resp.Cells))
	}
}

func TestMonthEndpointRejectsBadMonth(t *testing.T) {
	s := newTestServer(t, "")
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/month?year=2024&month=13", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWeekEndpointNormalizesDate(t *testing.T) {
	s := newTestServer(t, "")

	// A Wednesday; the returned grid starts on the previous Sunday.
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/week?date=2024-06-26", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Key  string `json:"weekStart"`
		Days []struct {
			Key   string            `json:"date"`
			Slots []json.RawMessage `json:"slots"`
		} `json:"days"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Key != "2024-06-23" {
		t.Errorf("week key = %s, want 2024-06-23", resp.Key)
	}
	if len(resp.Days) != 7 {
		t.Fatalf("days = %d", len(resp.Days))
	}
	for _, day := range resp.Days {
		if len(day.Slots) != 4 {
			t.Errorf("day %s has %d slots", day.Key, len(day.Slots))
		}
	}
}

func TestWeekEndpointRejectsBadDate(t *testing.T) {
	s := newTestServer(t, "")
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/week?date=June+26", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestEventsCRUD(t *testing.T) {
	s := newTestServer(t, "")
	h := s.Handler()

	// Create.
	w := doJSON(t, h, http.MethodPost, "/api/events",
		`{"date":"2024-02-29","title":"leap party","startTime":"18:00","endTime":"22:00","color":"purple"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created model.Event
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.Title != "leap party" {
		t.Fatalf("created = %+v", created)
	}

	// Read back.
	w = doJSON(t, h, http.MethodGet, "/api/events?date=2024-02-29", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed struct {
		Events []model.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Events) != 1 || listed.Events[0].ID != created.ID {
		t.Fatalf("listed = %+v", listed.Events)
	}

	// Update.
	w = doJSON(t, h, http.MethodPut, "/api/events",
		`{"date":"2024-02-29","id":`+jsonID(created.ID)+`,"title":"leap party, moved","startTime":"19:00","endTime":"23:00"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	var updated model.Event
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.ID != created.ID || updated.Title != "leap party, moved" {
		t.Fatalf("updated = %+v", updated)
	}

	// Delete.
	w = doJSON(t, h, http.MethodDelete, "/api/events?date=2024-02-29&id="+jsonID(created.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodDelete, "/api/events?date=2024-02-29&id="+jsonID(created.ID), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}
}

func jsonID(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestEventsValidationErrors(t *testing.T) {
	s := newTestServer(t, "")
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"empty title", `{"date":"2024-06-24","title":"   ","isAllDay":true}`},
		{"unpadded hour", `{"date":"2024-06-24","title":"x","startTime":"9:00","endTime":"10:00"}`},
		{"end before start", `{"date":"2024-06-24","title":"x","startTime":"15:00","endTime":"14:00"}`},
		{"bad date", `{"date":"yesterday","title":"x","isAllDay":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/events", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestKeyEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/key", `{"key":"definitely-not-a-key"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad key status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/key", `{"key":"`+testKey+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("good key status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodDelete, "/api/key", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", w.Code)
	}
}

func TestAssistRequiresMessage(t *testing.T) {
	s := newTestServer(t, "")
	w := doJSON(t, s.Handler(), http.MethodPost, "/api/assist", `{"message":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/api/events",
		`{"date":"2024-06-24","title":"exported","startTime":"09:00","endTime":"10:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/export.ics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "SUMMARY:exported") {
		t.Errorf("feed missing event:\n%s", body)
	}
}

func TestAPIFallthroughIsNotFound(t *testing.T) {
	s := newTestServer(t, "")
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<html>") {
		t.Error("unknown API path answered with HTML")
	}
}
