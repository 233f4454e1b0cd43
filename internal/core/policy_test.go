package core

import (
	"strings"
	"testing"
	"time"

	"postop-monitor/pkg"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	cat, err := LoadSymptomCatalog()
	if err != nil {
		t.Fatal(err)
	}
	return NewPolicy(NewTracker(cat), 500)
}

func TestBuildPromptAsksNextSymptom(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.DialogueStage = pkg.StageSymptomsInquiry

	req := p.BuildPrompt(s, "I had my surgery last week", "en")

	if !strings.Contains(req.User, "Can you describe the pain?") {
		t.Errorf("first turn should ask the pain question, got:\n%s", req.User)
	}
	if s.LastPromptedSymptom != "pain" {
		t.Errorf("LastPromptedSymptom = %q, want pain", s.LastPromptedSymptom)
	}
	if len(s.SymptomsPrompted) != 1 || s.SymptomsPrompted[0] != "pain" {
		t.Errorf("SymptomsPrompted = %v", s.SymptomsPrompted)
	}
	if req.Temperature != 0.7 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if req.MaxTokens != 500 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
}

func TestBuildPromptSkipsAnsweredSymptoms(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.DialogueStage = pkg.StageSymptomsInquiry
	s.SymptomsAsked = []string{"pain", "swelling"}

	req := p.BuildPrompt(s, "feeling okay", "en")

	if !strings.Contains(req.User, "Have you noticed any bleeding?") {
		t.Errorf("should ask about bleeding next, got:\n%s", req.User)
	}
	if !strings.Contains(req.User, "Asked about: pain, swelling.") {
		t.Errorf("asked context missing:\n%s", req.User)
	}
}

func TestBuildPromptAssessesWhenChecklistComplete(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.DialogueStage = pkg.StageSymptomsInquiry
	s.SymptomsAsked = []string{"pain", "swelling", "bleeding", "infection", "delayed healing"}

	req := p.BuildPrompt(s, "that is everything", "en")

	if !strings.Contains(req.User, "[RISK_LEVEL: LOW/MODERATE/HIGH]") {
		t.Errorf("assessment instruction missing:\n%s", req.User)
	}
	if !strings.Contains(req.System, "ASSESSMENT") {
		t.Errorf("system stage should be ASSESSMENT:\n%s", req.System)
	}
	if s.LastPromptedSymptom != "" {
		t.Errorf("assessment turn must not prompt a symptom, got %q", s.LastPromptedSymptom)
	}
}

func TestBuildPromptSevereMessageForcesAssessment(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.DialogueStage = pkg.StageSymptomsInquiry

	req := p.BuildPrompt(s, "the swelling looks severe", "en")

	if !strings.Contains(req.User, "[RISK_LEVEL: LOW/MODERATE/HIGH]") {
		t.Errorf("severe wording should force assessment:\n%s", req.User)
	}
}

func TestBuildPromptSurgeryContext(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.DialogueStage = pkg.StageSymptomsInquiry
	s.SurgeryInfo = pkg.SurgeryInfo{SurgeryType: "Knee Replacement"}

	req := p.BuildPrompt(s, "hello", "en")

	if !strings.Contains(req.User, "Surgery: Knee Replacement.\n") {
		t.Errorf("surgery context missing:\n%s", req.User)
	}
	if !strings.Contains(req.System, "Surgery: Knee Replacement.") {
		t.Errorf("system prompt missing surgery:\n%s", req.System)
	}
}

func TestBuildPromptTruncatesUploadAnalysis(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.Uploads = []pkg.Upload{{
		Filename: "report.pdf",
		Analysis: strings.Repeat("x", 600),
	}}

	req := p.BuildPrompt(s, "what does my report say", "en")

	idx := strings.Index(req.User, "Report: Medical Data: ")
	if idx == -1 {
		t.Fatalf("report section missing:\n%s", req.User)
	}
	section := req.User[idx:]
	if !strings.Contains(section, strings.Repeat("x", 400)+"...") {
		t.Errorf("analysis not truncated to 400 runes")
	}
	if strings.Contains(section, strings.Repeat("x", 401)) {
		t.Errorf("analysis exceeds truncation bound")
	}
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	base := time.Now()
	for i, text := range []string{"first", "second", "third", "fourth", "fifth"} {
		role := pkg.RolePatient
		if i%2 == 1 {
			role = pkg.RoleAssistant
		}
		s.Conversation = append(s.Conversation, pkg.Message{Role: role, Content: text, Timestamp: base})
	}

	req := p.BuildPrompt(s, "current message", "en")

	for _, absent := range []string{"first", "second"} {
		if strings.Contains(req.User, absent) {
			t.Errorf("history window should drop %q:\n%s", absent, req.User)
		}
	}
	for _, present := range []string{"third", "fourth", "fifth"} {
		if !strings.Contains(req.User, present) {
			t.Errorf("history window should keep %q:\n%s", present, req.User)
		}
	}
}

func TestBuildPromptTamilLocale(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.DialogueStage = pkg.StageSymptomsInquiry

	req := p.BuildPrompt(s, "வணக்கம்", "ta")

	if !strings.Contains(req.User, "வலியை விவரிக்க முடியுமா?") {
		t.Errorf("Tamil pain question missing:\n%s", req.User)
	}
	if !strings.Contains(req.System, "தமிழில்") {
		t.Errorf("Tamil system prompt missing:\n%s", req.System)
	}
}

func TestPostProcessHighRisk(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	v := Verdict{Level: pkg.RiskHigh, Narrative: "Please seek care."}

	p.PostProcess(s, &v)

	if !strings.Contains(v.Narrative, "HIGH RISK DETECTED") {
		t.Errorf("urgent advisory missing:\n%s", v.Narrative)
	}
	if s.DialogueStage != pkg.StageUrgentCare {
		t.Errorf("stage = %s, want urgent_care", s.DialogueStage)
	}
	if s.RiskLevel != pkg.RiskHigh {
		t.Errorf("risk level = %s, want high", s.RiskLevel)
	}
}

func TestPostProcessLowRiskWithEnoughSymptoms(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.SymptomsAsked = []string{"pain", "swelling", "bleeding"}
	v := Verdict{Level: pkg.RiskLow, Narrative: "You are recovering well."}

	p.PostProcess(s, &v)

	if !strings.Contains(v.Narrative, "PREVENTIVE MEASURES") {
		t.Errorf("preventive advisory missing:\n%s", v.Narrative)
	}
	if s.DialogueStage != pkg.StageFollowUp {
		t.Errorf("stage = %s, want follow_up", s.DialogueStage)
	}
}

func TestPostProcessLowRiskSkipsAdvisoryWhenRecommended(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.SymptomsAsked = []string{"pain", "swelling", "bleeding"}
	v := Verdict{Level: pkg.RiskLow, Narrative: "Continue your medication as prescribed."}

	p.PostProcess(s, &v)

	if strings.Contains(v.Narrative, "PREVENTIVE MEASURES") {
		t.Errorf("advisory should not duplicate existing recommendations:\n%s", v.Narrative)
	}
	if s.DialogueStage != pkg.StageFollowUp {
		t.Errorf("stage = %s, want follow_up", s.DialogueStage)
	}
}

func TestPostProcessLowRiskTooEarly(t *testing.T) {
	p := newTestPolicy(t)
	s := newSession("p1")
	s.SymptomsAsked = []string{"pain"}
	v := Verdict{Level: pkg.RiskLow, Narrative: "Seems fine so far."}

	p.PostProcess(s, &v)

	if strings.Contains(v.Narrative, "PREVENTIVE MEASURES") {
		t.Errorf("advisory must wait for the checklist:\n%s", v.Narrative)
	}
	if s.DialogueStage != pkg.StageSymptomsInquiry {
		t.Errorf("stage = %s, want symptoms_inquiry", s.DialogueStage)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes short = %q", got)
	}
	if got := truncateRunes("abcdef", 3); got != "abc..." {
		t.Errorf("truncateRunes = %q", got)
	}
	// Multibyte text must be cut on rune boundaries.
	if got := truncateRunes("வலி மிகவும்", 3); got != "வலி..." {
		t.Errorf("truncateRunes tamil = %q", got)
	}
}
