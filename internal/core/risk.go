package core

import (
	"strings"

	"postop-monitor/pkg"
)

// Keyword sets for the pre-LLM severe-symptom gate. Both a pain term and a
// severity term must appear in the same message to escalate.
var (
	painTerms = []string{"pain", "hurt", "ache", "aching", "painful"}
	// "heacy" is a common mistyping of "heavy" seen in patient messages.
	severityTerms = []string{"severe", "very bad", "extreme", "unbearable", "worst", "heavy", "heacy"}
)

// DetectSevere reports whether a patient message describes severe pain and
// the turn must escalate without a completion call.
func DetectSevere(message string) bool {
	lower := strings.ToLower(message)
	return containsAny(lower, painTerms) && containsAny(lower, severityTerms)
}

// ScoreForLevel is the single source of truth for the level→score
// quantization. "medium" is accepted as a synonym for moderate.
func ScoreForLevel(level string) int {
	switch strings.ToLower(level) {
	case "high":
		return 85
	case "moderate", "medium":
		return 55
	case "low":
		return 25
	default:
		return 40
	}
}

// trendWindow is how many prior scores feed the trend, in addition to the
// score for the current turn.
const trendWindow = 3

// ComputeTrend compares the first and last score of the window. Fewer than
// two points is always stable.
func ComputeTrend(scores []int) pkg.TrendStatus {
	if len(scores) < 2 {
		return pkg.TrendStable
	}
	delta := scores[len(scores)-1] - scores[0]
	switch {
	case delta < 0:
		return pkg.TrendImproving
	case delta > 0:
		return pkg.TrendWorsening
	default:
		return pkg.TrendStable
	}
}

// TrendScoreWindow assembles the scores the trend is computed over: up to the
// last three historical scores plus the new one.
func TrendScoreWindow(history []pkg.RiskHistoryEntry, newScore int) []int {
	start := 0
	if len(history) > trendWindow {
		start = len(history) - trendWindow
	}
	window := make([]int, 0, trendWindow+1)
	for _, h := range history[start:] {
		window = append(window, h.RiskScore)
	}
	return append(window, newScore)
}

// AlertDecision is what a numeric score implies for the hospital side.
type AlertDecision struct {
	Level            pkg.RiskLevel
	StatusMessage    string
	Notify           bool
	ScheduleReminder bool
}

// DecideAlert maps a score to its alert level and status message. Score 70 is
// moderate; 71 is high. When the session already escalated, the high status
// names severe pain instead of generic high risk.
func DecideAlert(score int, escalated bool) AlertDecision {
	switch {
	case score > 70:
		status := "High risk – CALL PATIENT NOW"
		if escalated {
			status = "Severe pain – CALL PATIENT NOW"
		}
		return AlertDecision{Level: pkg.RiskHigh, StatusMessage: status, Notify: true}
	case score >= 40:
		return AlertDecision{
			Level:            pkg.RiskModerate,
			StatusMessage:    "Moderate risk – Follow-up scheduled in 24h",
			ScheduleReminder: true,
		}
	default:
		return AlertDecision{Level: pkg.RiskLow, StatusMessage: "Low risk – Preventive care suggested"}
	}
}

// TrendRemark is the short line appended to a reply when no question is
// pending. An empty string means nothing to append.
func TrendRemark(trend pkg.TrendStatus) string {
	switch trend {
	case pkg.TrendImproving:
		return "\nYour recovery trend is improving!"
	case pkg.TrendWorsening:
		return "\nYour condition is worsening, please consult your doctor."
	case pkg.TrendStable:
		return "\nYour status appears stable at the moment."
	}
	return ""
}
