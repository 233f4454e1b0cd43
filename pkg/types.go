package pkg

import "time"

// RiskLevel is the qualitative risk classification for a patient. Numeric
// scores are derived from it in one place only (core.ScoreForLevel).
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Concrete reports whether the level carries a numeric score. Unknown levels
// never produce a score, history entry or alert.
func (l RiskLevel) Concrete() bool {
	return l == RiskLow || l == RiskModerate || l == RiskHigh
}

// DialogueStage tracks where a session sits in the conversational protocol.
type DialogueStage string

const (
	StageInitial            DialogueStage = "initial"
	StageSymptomsInquiry    DialogueStage = "symptoms_inquiry"
	StageAssessmentComplete DialogueStage = "assessment_complete"
	StageUrgentCare         DialogueStage = "urgent_care"
	StageFollowUp           DialogueStage = "follow_up"
	StageEscalated          DialogueStage = "escalated"
)

// TrendStatus is the direction of change across recent risk scores.
type TrendStatus string

const (
	TrendImproving TrendStatus = "improving"
	TrendWorsening TrendStatus = "worsening"
	TrendStable    TrendStatus = "stable"
)

// MessageRole describes who authored a conversation message.
type MessageRole string

const (
	RolePatient   MessageRole = "patient"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn in a patient conversation. Conversations are append-only.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// SurgeryInfo is the structured surgery context extracted from uploads. It is
// overwritten wholesale when a new upload yields a non-empty surgery type.
type SurgeryInfo struct {
	SurgeryType         string   `json:"surgery_type"`
	SurgeryDate         string   `json:"surgery_date,omitempty"`
	Site                string   `json:"site,omitempty"`
	Side                string   `json:"side,omitempty"`
	CommonComplications []string `json:"common_complications,omitempty"`
	RecoveryTimeline    string   `json:"recovery_timeline,omitempty"`
}

// Empty reports whether no surgery context has been established.
func (s SurgeryInfo) Empty() bool { return s.SurgeryType == "" }

// Upload records one uploaded document or image and its analysis.
type Upload struct {
	Filename        string      `json:"filename"`
	Content         string      `json:"content,omitempty"`
	Analysis        string      `json:"analysis"`
	SurgeryInfo     SurgeryInfo `json:"surgery_info"`
	Timestamp       time.Time   `json:"timestamp"`
	IsImage         bool        `json:"is_image"`
	HeatmapAnalysis string      `json:"heatmap_analysis,omitempty"`
	HeatmapPath     string      `json:"heatmap_image_path,omitempty"`
}

// Contact holds the optional patient contact details used on dashboard cards
// and in doctor notifications.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// PatientSession is the per-patient in-memory state. Created on first
// interaction and mutated throughout; it lives for the process lifetime.
type PatientSession struct {
	PatientID           string            `json:"patient_id"`
	Conversation        []Message         `json:"conversation"`
	Uploads             []Upload          `json:"uploads"`
	SurgeryInfo         SurgeryInfo       `json:"surgery_info"`
	RiskLevel           RiskLevel         `json:"risk_level"`
	Details             map[string]string `json:"details"`
	SymptomsAsked       []string          `json:"symptoms_asked"`
	SymptomsPrompted    []string          `json:"symptoms_prompted"`
	LastPromptedSymptom string            `json:"last_prompted_symptom,omitempty"`
	DialogueStage       DialogueStage     `json:"dialogue_stage"`
	Contact             Contact           `json:"contact"`
	LastUpdated         time.Time         `json:"last_updated"`
}

// RiskHistoryEntry is one persisted risk checkpoint.
type RiskHistoryEntry struct {
	PatientID   string      `json:"patient_id"`
	Date        time.Time   `json:"date"`
	RiskScore   int         `json:"risk_score"`
	TrendStatus TrendStatus `json:"trend_status"`
}

// DoctorAlert is one persisted alert record. Alerts are a time series of risk
// checkpoints, not a deduplicated changelog.
type DoctorAlert struct {
	PatientID     string    `json:"patient_id"`
	RiskScore     int       `json:"risk_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	StatusMessage string    `json:"status_message"`
	CreatedAt     time.Time `json:"created_at"`
}

// DashboardEntry is the read-optimized projection of a session for the
// hospital dashboard. Always recomputed from the session, never merged.
type DashboardEntry struct {
	PatientID         string      `json:"patient_id"`
	Name              string      `json:"name"`
	RiskLevel         RiskLevel   `json:"risk_level"`
	LastUpdated       time.Time   `json:"last_updated"`
	ConversationCount int         `json:"conversation_count"`
	UploadCount       int         `json:"upload_count"`
	SurgeryInfo       SurgeryInfo `json:"surgery_info"`
	SymptomsAsked     []string    `json:"symptoms_asked"`
}

// DoctorPayload is the snapshot attached to an urgent doctor notification.
type DoctorPayload struct {
	PatientID     string      `json:"patient_id"`
	RiskLevel     RiskLevel   `json:"risk_level"`
	RiskScore     int         `json:"risk_score"`
	SurgeryInfo   SurgeryInfo `json:"surgery_info"`
	SymptomsAsked []string    `json:"symptoms_asked"`
	RecentMsgs    []Message   `json:"recent_messages"`
	LatestUploads []Upload    `json:"latest_uploads"`
	Contact       Contact     `json:"contact"`
}

// ChatRequest is a patient chat message posted to the API.
type ChatRequest struct {
	PatientID string `json:"patient_id"`
	Message   string `json:"message"`
	Language  string `json:"language,omitempty"`
}

// ChatResponse is the assistant reply for one turn. RiskScore is present only
// when the risk level resolved to a concrete value.
type ChatResponse struct {
	Message   string            `json:"message"`
	RiskLevel RiskLevel         `json:"risk_level"`
	RiskScore *int              `json:"risk_score,omitempty"`
	Details   map[string]string `json:"details"`
}

// UploadResponse is returned by the upload endpoint.
type UploadResponse struct {
	Message         string `json:"message"`
	Analysis        string `json:"analysis"`
	Filename        string `json:"filename"`
	IsImage         bool   `json:"is_image"`
	HeatmapAnalysis string `json:"heatmap_analysis,omitempty"`
	HeatmapPath     string `json:"heatmap_image_path,omitempty"`
}
