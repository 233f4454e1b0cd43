package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"postop-monitor/internal/core"
	"postop-monitor/internal/report"
	"postop-monitor/pkg"
)

// Server bundles the dependencies required by the HTTP handlers. The routing
// layer is glue: every decision lives in internal/core.
type Server struct {
	Chat      *core.ChatService
	Intake    *core.IntakeService
	Store     core.SessionStore
	Dashboard *core.Dashboard
	RiskLog   core.RiskLog
	Logger    *logrus.Logger

	MaxUploadBytes int64
	DefaultLang    string

	router *mux.Router
}

// NewServer constructs the server and registers its routes.
func NewServer(
	chat *core.ChatService,
	intake *core.IntakeService,
	store core.SessionStore,
	dashboard *core.Dashboard,
	riskLog core.RiskLog,
	logger *logrus.Logger,
	maxUploadBytes int64,
	defaultLang string,
) *Server {
	s := &Server{
		Chat:           chat,
		Intake:         intake,
		Store:          store,
		Dashboard:      dashboard,
		RiskLog:        riskLog,
		Logger:         logger,
		MaxUploadBytes: maxUploadBytes,
		DefaultLang:    defaultLang,
	}
	r := mux.NewRouter()
	r.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/api/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/api/contact", s.handleContact).Methods(http.MethodPost)
	r.HandleFunc("/api/patients", s.handlePatients).Methods(http.MethodGet)
	r.HandleFunc("/api/patient/{id}", s.handlePatient).Methods(http.MethodGet)
	r.HandleFunc("/api/risk-history/{id}", s.handleRiskHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/doctor-alerts", s.handleDoctorAlerts).Methods(http.MethodGet)
	r.HandleFunc("/api/report/{id}", s.handleReport).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req pkg.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == "" {
		req.PatientID = "patient_1"
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}
	lang := req.Language
	if lang == "" {
		lang = s.DefaultLang
	}
	resp, err := s.Chat.HandleMessage(r.Context(), req.PatientID, req.Message, lang)
	if err != nil {
		s.Logger.WithError(err).WithField("patient_id", req.PatientID).Error("chat turn failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()
	patientID := r.FormValue("patient_id")
	if patientID == "" {
		patientID = "patient_1"
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	resp, err := s.Intake.HandleUpload(r.Context(), patientID, header.Filename, data)
	if err != nil {
		s.Logger.WithError(err).WithField("patient_id", patientID).Error("upload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patient_id"`
		Name      string `json:"name"`
		Phone     string `json:"phone"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == "" {
		req.PatientID = "patient_1"
	}
	core.UpdateContact(s.Store, req.PatientID, pkg.Contact{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Dashboard.Entries())
}

func (s *Server) handlePatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, ok := s.Store.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRiskHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	history, err := s.RiskLog.RiskHistory(r.Context(), id)
	if err != nil {
		s.Logger.WithError(err).WithField("patient_id", id).Error("risk history query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": id,
		"history":    history,
	})
}

func (s *Server) handleDoctorAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.RiskLog.RecentAlerts(r.Context())
	if err != nil {
		s.Logger.WithError(err).Error("alert query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, ok := s.Store.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="report_`+id+`.txt"`)
	io.WriteString(w, report.Build(session, time.Now()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
