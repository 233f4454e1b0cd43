package core

import (
	"strings"

	"postop-monitor/pkg"
)

// Verdict is the structured result of a completion-service reply: the risk
// level, the narrative with control tags stripped, and any extracted details.
// A missing risk tag resolves to RiskUnknown rather than an error; malformed
// model output must never break a turn.
type Verdict struct {
	Level     pkg.RiskLevel
	Narrative string
	Details   map[string]string
}

// ParseVerdict extracts the inline tag contract ([RISK_LEVEL: LOW|MODERATE|
// HIGH], optionally [DETAILS: ...]) from raw model text. Matching is
// case-insensitive and tolerant of spacing inside the tag.
func ParseVerdict(text string) Verdict {
	v := Verdict{Level: pkg.RiskUnknown, Details: map[string]string{}}

	text, levelWord := stripTag(text, "[RISK_LEVEL:")
	switch strings.ToLower(levelWord) {
	case "high":
		v.Level = pkg.RiskHigh
	case "moderate", "medium":
		v.Level = pkg.RiskModerate
	case "low":
		v.Level = pkg.RiskLow
	}

	text, details := stripTag(text, "[DETAILS:")
	if details != "" {
		v.Details["summary"] = details
	}

	v.Narrative = strings.TrimSpace(text)
	return v
}

// stripTag removes the first occurrence of `prefix ... ]` from text and
// returns the remaining text plus the tag body. An unterminated tag is left
// in place; best-effort parsing must not eat the narrative.
func stripTag(text, prefix string) (string, string) {
	lower := strings.ToLower(text)
	start := strings.Index(lower, strings.ToLower(prefix))
	if start == -1 {
		return text, ""
	}
	end := strings.Index(text[start:], "]")
	if end == -1 {
		return text, ""
	}
	end += start
	body := strings.TrimSpace(text[start+len(prefix) : end])
	return text[:start] + text[end+1:], body
}

// FirstQuestionOnly enforces the single-question-per-turn rule on the final
// outgoing text: if a second '?' follows the first, the text is truncated to
// end at the first '?'. This is a hard safety net independent of the prompt
// instruction.
func FirstQuestionOnly(text string) string {
	first := strings.Index(text, "?")
	if first == -1 {
		return text
	}
	if strings.Index(text[first+1:], "?") != -1 {
		return text[:first+1]
	}
	return text
}
