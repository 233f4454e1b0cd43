package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"postop-monitor/internal/llm"
	"postop-monitor/pkg"
)

// nowFn is swapped out in tests that assert on timestamps.
var nowFn = time.Now

// RiskLog is the append-only persistence boundary for risk checkpoints and
// doctor alerts. Writes are synchronous; the core does not retry on failure,
// it surfaces the error.
type RiskLog interface {
	AppendRisk(ctx context.Context, patientID string, score int, trend pkg.TrendStatus) error
	RiskHistory(ctx context.Context, patientID string) ([]pkg.RiskHistoryEntry, error)
	AppendAlert(ctx context.Context, alert pkg.DoctorAlert) error
	RecentAlerts(ctx context.Context) ([]pkg.DoctorAlert, error)
}

// Notifier dispatches an immediate doctor notification for high-risk turns.
type Notifier interface {
	NotifyDoctor(ctx context.Context, payload pkg.DoctorPayload) error
}

// ReminderScheduler schedules the 24h follow-up for moderate-risk turns.
type ReminderScheduler interface {
	Schedule(ctx context.Context, patientID string) error
}

// LoggingScheduler records the reminder in the log stream. Production wiring
// would hand this to a task queue.
type LoggingScheduler struct {
	Logger *logrus.Logger
}

func (l *LoggingScheduler) Schedule(ctx context.Context, patientID string) error {
	l.Logger.WithField("patient_id", patientID).Info("follow-up reminder scheduled in 24h")
	return nil
}

// ChatService runs one patient turn end to end: escalation gate, dialogue
// policy, completion call, verdict parsing, scoring, logging, alerting.
type ChatService struct {
	store     SessionStore
	tracker   *Tracker
	policy    *Policy
	llm       llm.Client
	riskLog   RiskLog
	notifier  Notifier
	reminders ReminderScheduler
	dashboard *Dashboard
	logger    *logrus.Logger
}

func NewChatService(
	store SessionStore,
	tracker *Tracker,
	policy *Policy,
	client llm.Client,
	riskLog RiskLog,
	notifier Notifier,
	reminders ReminderScheduler,
	dashboard *Dashboard,
	logger *logrus.Logger,
) *ChatService {
	return &ChatService{
		store:     store,
		tracker:   tracker,
		policy:    policy,
		llm:       client,
		riskLog:   riskLog,
		notifier:  notifier,
		reminders: reminders,
		dashboard: dashboard,
		logger:    logger,
	}
}

// HandleMessage processes one inbound patient message and returns the
// assistant reply. Completion-service failures degrade to an error-flavored
// reply with an unknown risk level; only persistence-log failures surface as
// errors.
func (c *ChatService) HandleMessage(ctx context.Context, patientID, message, locale string) (*pkg.ChatResponse, error) {
	s := c.store.Get(patientID)
	s.Conversation = append(s.Conversation, pkg.Message{
		Role:      pkg.RolePatient,
		Content:   message,
		Timestamp: nowFn(),
	})

	var resp *pkg.ChatResponse
	switch {
	case s.DialogueStage == pkg.StageEscalated:
		// Escalation is an absorbing state: hold the patient without asking
		// anything new and without a completion call.
		level := s.RiskLevel
		if level == "" || level == pkg.RiskUnknown {
			level = pkg.RiskHigh
		}
		resp = &pkg.ChatResponse{
			Message:   promptsFor(locale).holdingMessage,
			RiskLevel: level,
			Details:   map[string]string{"escalated": "true"},
		}
	case DetectSevere(message):
		s.DialogueStage = pkg.StageEscalated
		resp = &pkg.ChatResponse{
			Message:   promptsFor(locale).escalationMessage,
			RiskLevel: pkg.RiskHigh,
			Details:   map[string]string{"severity": "severe", "escalated": "true"},
		}
		c.logger.WithField("patient_id", patientID).Warn("severe symptoms detected, session escalated")
	default:
		resp = c.generate(ctx, s, message, locale)
	}

	resp.Message = FirstQuestionOnly(resp.Message)

	s.Conversation = append(s.Conversation, pkg.Message{
		Role:      pkg.RoleAssistant,
		Content:   resp.Message,
		Timestamp: nowFn(),
	})

	s.RiskLevel = resp.RiskLevel
	for k, v := range resp.Details {
		s.Details[k] = v
	}
	if resp.RiskLevel.Concrete() {
		if err := c.recordRisk(ctx, s, resp); err != nil {
			return nil, err
		}
	}

	// Symptom bookkeeping runs on every turn: patients may volunteer
	// information the policy never prompted for.
	c.tracker.RecordMention(s, message)
	c.tracker.RecordGenericAck(s, message)
	if len(s.SymptomsAsked) >= assessmentCompleteCount &&
		s.DialogueStage != pkg.StageEscalated &&
		s.DialogueStage != pkg.StageUrgentCare {
		s.DialogueStage = pkg.StageAssessmentComplete
	}

	c.store.Upsert(s)
	return resp, nil
}

// generate runs the dialogue policy and completion call for a non-escalated
// turn.
func (c *ChatService) generate(ctx context.Context, s *pkg.PatientSession, message, locale string) *pkg.ChatResponse {
	c.tracker.RecordRepeatComplaint(s, message)

	req := c.policy.BuildPrompt(s, message, locale)
	raw, err := c.llm.Complete(ctx, req)
	if err != nil {
		text := fmt.Sprintf("Error processing request: %v. Please try again.", err)
		if err == llm.ErrNotConfigured {
			text = promptsFor(locale).notConfigured
		}
		c.logger.WithError(err).WithField("patient_id", s.PatientID).Error("completion call failed")
		return &pkg.ChatResponse{
			Message:   text,
			RiskLevel: pkg.RiskUnknown,
			Details:   map[string]string{},
		}
	}

	v := ParseVerdict(raw)
	c.policy.PostProcess(s, &v)
	return &pkg.ChatResponse{
		Message:   v.Narrative,
		RiskLevel: v.Level,
		Details:   v.Details,
	}
}

// recordRisk converts the resolved level into a numeric checkpoint: score,
// trend, history entry, alert record, and any notification or reminder the
// alert level calls for.
func (c *ChatService) recordRisk(ctx context.Context, s *pkg.PatientSession, resp *pkg.ChatResponse) error {
	score := ScoreForLevel(string(resp.RiskLevel))
	resp.RiskScore = &score
	if !strings.Contains(strings.ToLower(resp.Message), "score:") {
		resp.Message = fmt.Sprintf("Risk score: %d\n%s", score, resp.Message)
	}

	history, err := c.riskLog.RiskHistory(ctx, s.PatientID)
	if err != nil {
		return fmt.Errorf("load risk history: %w", err)
	}
	trend := ComputeTrend(TrendScoreWindow(history, score))
	if err := c.riskLog.AppendRisk(ctx, s.PatientID, score, trend); err != nil {
		return fmt.Errorf("append risk entry: %w", err)
	}

	// A trend remark must never compete with an active question for the
	// patient's attention.
	if !strings.Contains(resp.Message, "?") {
		resp.Message += TrendRemark(trend)
	}

	decision := DecideAlert(score, s.DialogueStage == pkg.StageEscalated)
	alert := pkg.DoctorAlert{
		PatientID:     s.PatientID,
		RiskScore:     score,
		RiskLevel:     decision.Level,
		StatusMessage: decision.StatusMessage,
		CreatedAt:     nowFn(),
	}
	if err := c.riskLog.AppendAlert(ctx, alert); err != nil {
		return fmt.Errorf("append doctor alert: %w", err)
	}
	if decision.Notify {
		payload := c.dashboard.DoctorPayload(s, score)
		if err := c.notifier.NotifyDoctor(ctx, payload); err != nil {
			// Notification failure is operator-visible but must not block the
			// turn; the alert row is already persisted.
			c.logger.WithError(err).WithField("patient_id", s.PatientID).Error("doctor notification failed")
		}
	}
	if decision.ScheduleReminder {
		if err := c.reminders.Schedule(ctx, s.PatientID); err != nil {
			c.logger.WithError(err).WithField("patient_id", s.PatientID).Error("reminder scheduling failed")
		}
	}
	return nil
}
