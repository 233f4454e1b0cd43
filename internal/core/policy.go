package core

import (
	"fmt"
	"strings"

	"postop-monitor/internal/llm"
	"postop-monitor/pkg"
)

// Context bounds per completion call: token and latency limits, not
// correctness requirements.
const (
	maxAnalysisRunes = 400
	maxTurnRunes     = 200
	historyTurns     = 3
	chatTemperature  = 0.7
)

// Policy builds the instruction pair sent to the completion service and
// applies the post-processing rules to its reply. It owns the two-phase
// protocol: symptom inquiry, then assessment.
type Policy struct {
	tracker   *Tracker
	maxTokens int
}

func NewPolicy(tracker *Tracker, maxTokens int) *Policy {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Policy{tracker: tracker, maxTokens: maxTokens}
}

// BuildPrompt assembles the system and user instructions for the current
// turn. When the turn is still in the inquiry phase it records the target
// symptom into the prompted set before returning, so the same symptom is not
// offered twice.
func (p *Policy) BuildPrompt(s *pkg.PatientSession, message, locale string) llm.Request {
	texts := promptsFor(locale)
	assessing := p.tracker.ShouldAssess(s, message)

	surgery := s.SurgeryInfo.SurgeryType
	if surgery == "" {
		surgery = texts.unknownSurgery
	}
	stageWord := texts.stageAsking
	if assessing {
		stageWord = texts.stageAssessing
	}
	asked := texts.noneWord
	if len(s.SymptomsAsked) > 0 {
		asked = strings.Join(s.SymptomsAsked, ", ")
	}
	system := fmt.Sprintf(texts.system, surgery, stageWord, asked)

	var parts []string
	var userContext string
	if surgery != "" && surgery != texts.unknownSurgery && surgery != "Unknown" {
		userContext = fmt.Sprintf("Surgery: %s.\n", surgery)
	}
	if len(s.SymptomsAsked) > 0 {
		userContext += fmt.Sprintf("Asked about: %s.\n", strings.Join(s.SymptomsAsked, ", "))
	}
	if userContext != "" {
		parts = append(parts, userContext)
	}
	if len(s.Uploads) > 0 {
		latest := s.Uploads[len(s.Uploads)-1]
		if latest.Analysis != "" {
			parts = append(parts, "Report: Medical Data: "+truncateRunes(latest.Analysis, maxAnalysisRunes))
		}
	}
	if history := p.recentHistory(s); history != "" {
		parts = append(parts, "Recent chat:\n"+history)
	}
	parts = append(parts, "Patient: "+message)
	user := strings.Join(parts, "\n")

	if assessing {
		user += texts.assessInstruction
	} else if s.DialogueStage == pkg.StageSymptomsInquiry {
		if remaining := p.tracker.Remaining(s); len(remaining) > 0 {
			next := remaining[0]
			question := p.tracker.Catalog().Question(next, locale)
			user += fmt.Sprintf(texts.askOneInstruction, question)
			p.tracker.MarkPrompted(s, next)
		}
	}

	return llm.Request{
		System:      system,
		User:        user,
		Temperature: chatTemperature,
		MaxTokens:   p.maxTokens,
	}
}

// recentHistory renders the last few conversation turns, each truncated.
func (p *Policy) recentHistory(s *pkg.PatientSession) string {
	msgs := s.Conversation
	if len(msgs) > historyTurns {
		msgs = msgs[len(msgs)-historyTurns:]
	}
	var b strings.Builder
	for _, m := range msgs {
		name := "Assistant"
		if m.Role == pkg.RolePatient {
			name = "Patient"
		}
		fmt.Fprintf(&b, "%s: %s\n", name, truncateRunes(m.Content, maxTurnRunes))
	}
	return b.String()
}

// PostProcess applies the stage and advisory rules to a parsed verdict. The
// model must not short-circuit the checklist: a low verdict with fewer than
// three gathered symptoms forces the session back into inquiry.
func (p *Policy) PostProcess(s *pkg.PatientSession, v *Verdict) {
	switch {
	case v.Level == pkg.RiskHigh:
		v.Narrative += urgentAdvisory
		s.DialogueStage = pkg.StageUrgentCare
		s.RiskLevel = pkg.RiskHigh
	case v.Level == pkg.RiskLow && (len(s.SymptomsAsked) >= 3 || s.DialogueStage == pkg.StageAssessmentComplete):
		if !containsAny(strings.ToLower(v.Narrative), recommendationWords) {
			v.Narrative += preventiveAdvisory
		}
		s.DialogueStage = pkg.StageFollowUp
	case v.Level == pkg.RiskLow:
		s.DialogueStage = pkg.StageSymptomsInquiry
	}
}

// truncateRunes bounds text to max runes, appending an ellipsis marker when
// anything was cut.
func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
