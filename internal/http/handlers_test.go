package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"postop-monitor/internal/core"
	"postop-monitor/internal/llm"
	"postop-monitor/pkg"
)

type stubLLM struct {
	reply string
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.reply, nil
}

type stubRiskLog struct {
	risks  []pkg.RiskHistoryEntry
	alerts []pkg.DoctorAlert
}

func (s *stubRiskLog) AppendRisk(ctx context.Context, patientID string, score int, trend pkg.TrendStatus) error {
	s.risks = append(s.risks, pkg.RiskHistoryEntry{
		PatientID:   patientID,
		Date:        time.Now(),
		RiskScore:   score,
		TrendStatus: trend,
	})
	return nil
}

func (s *stubRiskLog) RiskHistory(ctx context.Context, patientID string) ([]pkg.RiskHistoryEntry, error) {
	var out []pkg.RiskHistoryEntry
	for _, r := range s.risks {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRiskLog) AppendAlert(ctx context.Context, alert pkg.DoctorAlert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *stubRiskLog) RecentAlerts(ctx context.Context) ([]pkg.DoctorAlert, error) {
	return s.alerts, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyDoctor(ctx context.Context, payload pkg.DoctorPayload) error { return nil }

type noopScheduler struct{}

func (noopScheduler) Schedule(ctx context.Context, patientID string) error { return nil }

type noopExtractor struct{}

func (noopExtractor) ExtractText(path, filename string) (string, error) { return "note text", nil }
func (noopExtractor) PDFCapable() bool                                  { return true }

type noopHeatmap struct{}

func (noopHeatmap) Analyze(path, filename string, info pkg.SurgeryInfo) (string, string, error) {
	return "X-ray Analysis: ok", "heatmap.png", nil
}

func newTestServer(t *testing.T, reply string) (*Server, *core.MemoryStore, *stubRiskLog) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := core.NewMemoryStore()
	tracker := core.NewTracker(core.MustLoadSymptomCatalog())
	riskLog := &stubRiskLog{}
	dashboard := core.NewDashboard(store)
	client := &stubLLM{reply: reply}
	chat := core.NewChatService(
		store, tracker, core.NewPolicy(tracker, 500), client,
		riskLog, noopNotifier{}, noopScheduler{}, dashboard, logger,
	)
	intake := core.NewIntakeService(store, client, noopExtractor{}, noopHeatmap{}, t.TempDir(), logger)
	srv := NewServer(chat, intake, store, dashboard, riskLog, logger, 1<<20, "en")
	return srv, store, riskLog
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, "[RISK_LEVEL: LOW] Glad to hear it.")

	w := postJSON(t, srv, "/api/chat", pkg.ChatRequest{PatientID: "p1", Message: "feeling fine"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp pkg.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RiskLevel != pkg.RiskLow {
		t.Errorf("risk level = %s", resp.RiskLevel)
	}
	if resp.RiskScore == nil || *resp.RiskScore != 25 {
		t.Errorf("risk score = %v", resp.RiskScore)
	}
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")

	w := postJSON(t, srv, "/api/chat", pkg.ChatRequest{PatientID: "p1", Message: "   "})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Errorf("error payload missing: %s", w.Body.String())
	}
}

func TestChatEndpointRejectsBadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{broken"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestChatEndpointMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t, `{"surgery_type": ""}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("patient_id", "p1"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "note.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("discharge note")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp pkg.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(resp.Filename, "_note.txt") {
		t.Errorf("filename = %q", resp.Filename)
	}
	s, ok := store.Lookup("p1")
	if !ok || len(s.Uploads) != 1 {
		t.Errorf("upload not recorded in session")
	}
}

func TestUploadEndpointWithoutFile(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("patient_id", "p1")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestContactAndPatientsEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")

	w := postJSON(t, srv, "/api/contact", map[string]string{
		"patient_id": "p1", "name": " Asha ", "phone": "555",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("contact status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("patients status = %d", rec.Code)
	}
	var entries []pkg.DashboardEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "Asha" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestPatientEndpointNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/patient/ghost", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRiskHistoryEndpoint(t *testing.T) {
	srv, _, riskLog := newTestServer(t, "unused")
	riskLog.AppendRisk(context.Background(), "p1", 55, pkg.TrendStable)

	req := httptest.NewRequest(http.MethodGet, "/api/risk-history/p1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		PatientID string                 `json:"patient_id"`
		History   []pkg.RiskHistoryEntry `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.PatientID != "p1" || len(body.History) != 1 || body.History[0].RiskScore != 55 {
		t.Errorf("body = %+v", body)
	}
}

func TestDoctorAlertsEndpoint(t *testing.T) {
	srv, _, riskLog := newTestServer(t, "unused")
	riskLog.AppendAlert(context.Background(), pkg.DoctorAlert{
		PatientID: "p1", RiskScore: 85, RiskLevel: pkg.RiskHigh,
		StatusMessage: "High risk – CALL PATIENT NOW", CreatedAt: time.Now(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/doctor-alerts", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Alerts []pkg.DoctorAlert `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].RiskLevel != pkg.RiskHigh {
		t.Errorf("alerts = %+v", body.Alerts)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t, "unused")
	store.Upsert(store.Get("p1"))

	req := httptest.NewRequest(http.MethodGet, "/api/report/p1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "report_p1.txt") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "POST-SURGICAL MONITORING REPORT") {
		t.Errorf("body = %q", w.Body.String())
	}
}
