package core

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"postop-monitor/pkg"
)

//go:embed symptoms.yaml
var symptomsYAML []byte

// SymptomDef is one checklist entry: the canonical tag, the free-text cues
// that count as an answer about it, and the canned question per locale.
type SymptomDef struct {
	Tag      string            `yaml:"tag"`
	Keywords []string          `yaml:"keywords"`
	Question map[string]string `yaml:"question"`
}

// SymptomCatalog is the fixed, ordered checklist the dialogue policy walks.
type SymptomCatalog struct {
	Symptoms []SymptomDef `yaml:"symptoms"`
}

// LoadSymptomCatalog parses the embedded checklist.
func LoadSymptomCatalog() (*SymptomCatalog, error) {
	var cat SymptomCatalog
	if err := yaml.Unmarshal(symptomsYAML, &cat); err != nil {
		return nil, fmt.Errorf("parse symptom catalog: %w", err)
	}
	if len(cat.Symptoms) == 0 {
		return nil, fmt.Errorf("symptom catalog is empty")
	}
	return &cat, nil
}

// MustLoadSymptomCatalog panics on a broken embedded catalog; that is a build
// defect, not a runtime condition.
func MustLoadSymptomCatalog() *SymptomCatalog {
	cat, err := LoadSymptomCatalog()
	if err != nil {
		panic(err)
	}
	return cat
}

// Question returns the canned question for a tag in the given locale, falling
// back to English, then to a generic phrasing.
func (c *SymptomCatalog) Question(tag, locale string) string {
	for _, s := range c.Symptoms {
		if s.Tag != tag {
			continue
		}
		if q := s.Question[locale]; q != "" {
			return q
		}
		if q := s.Question["en"]; q != "" {
			return q
		}
	}
	return fmt.Sprintf("Tell me about %s.", tag)
}

// Tags returns the checklist tags in declaration order.
func (c *SymptomCatalog) Tags() []string {
	tags := make([]string, len(c.Symptoms))
	for i, s := range c.Symptoms {
		tags[i] = s.Tag
	}
	return tags
}

// genericAckWords is the fixed acknowledgement vocabulary: a terse patient
// reply containing any of these counts as an answer to the last prompted
// symptom.
var genericAckWords = []string{
	"yes", "no", "yeah", "nope", "ok", "okay", "fine",
	"better", "worse", "same", "normal", "not sure",
}

// repeatComplaintWords mark a patient complaining that the assistant is
// repeating itself; the outstanding symptom is then treated as answered.
var repeatComplaintWords = []string{"repeat", "repeated", "again", "same question"}

// assessmentCompleteCount is how many answered symptoms complete the
// checklist and trigger the assessment stage.
const assessmentCompleteCount = 5

// Tracker decides which checklist symptoms remain, marks symptoms answered
// from free-text cues, and decides when enough is known to assess risk.
type Tracker struct {
	catalog *SymptomCatalog
}

func NewTracker(catalog *SymptomCatalog) *Tracker {
	return &Tracker{catalog: catalog}
}

func (t *Tracker) Catalog() *SymptomCatalog { return t.catalog }

// Remaining returns, in checklist order, the tags that are neither answered
// nor currently prompted. The head of this list is the next question.
func (t *Tracker) Remaining(s *pkg.PatientSession) []string {
	seen := make(map[string]bool, len(s.SymptomsAsked)+len(s.SymptomsPrompted))
	for _, tag := range s.SymptomsAsked {
		seen[tag] = true
	}
	for _, tag := range s.SymptomsPrompted {
		seen[tag] = true
	}
	var out []string
	for _, def := range t.catalog.Symptoms {
		if !seen[def.Tag] {
			out = append(out, def.Tag)
		}
	}
	return out
}

// RecordMention scans a patient message for checklist keywords and marks the
// matching tags as answered. Patients may volunteer information about
// symptoms never prompted.
func (t *Tracker) RecordMention(s *pkg.PatientSession, text string) {
	lower := strings.ToLower(text)
	for _, def := range t.catalog.Symptoms {
		for _, kw := range def.Keywords {
			if strings.Contains(lower, kw) {
				markAnswered(s, def.Tag)
				break
			}
		}
	}
}

// RecordGenericAck treats a terse reply (four tokens or fewer, or one
// containing the acknowledgement vocabulary) as an answer to the last
// prompted symptom. Patients often answer "yes" or "a bit better"; the policy
// must not re-ask.
func (t *Tracker) RecordGenericAck(s *pkg.PatientSession, text string) {
	if s.LastPromptedSymptom == "" {
		return
	}
	lower := strings.ToLower(text)
	if !containsAny(lower, genericAckWords) && len(strings.Fields(lower)) > 4 {
		return
	}
	markAnswered(s, s.LastPromptedSymptom)
}

// RecordRepeatComplaint skips the outstanding symptom when the patient says
// the assistant keeps asking the same thing.
func (t *Tracker) RecordRepeatComplaint(s *pkg.PatientSession, text string) {
	if s.LastPromptedSymptom == "" {
		return
	}
	if containsAny(strings.ToLower(text), repeatComplaintWords) {
		markAnswered(s, s.LastPromptedSymptom)
	}
}

// ShouldAssess reports whether the policy should request a risk verdict
// instead of asking another question.
func (t *Tracker) ShouldAssess(s *pkg.PatientSession, text string) bool {
	if len(s.SymptomsAsked) >= assessmentCompleteCount {
		return true
	}
	if s.DialogueStage == pkg.StageAssessmentComplete {
		return true
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "severe") || strings.Contains(lower, "emergency")
}

// MarkPrompted records that the assistant is about to ask about tag, so it is
// not offered again before the patient answers.
func (t *Tracker) MarkPrompted(s *pkg.PatientSession, tag string) {
	for _, p := range s.SymptomsPrompted {
		if p == tag {
			s.LastPromptedSymptom = tag
			return
		}
	}
	s.SymptomsPrompted = append(s.SymptomsPrompted, tag)
	s.LastPromptedSymptom = tag
}

// markAnswered moves tag into the answered set and clears it from the
// prompted set, keeping the two disjoint.
func markAnswered(s *pkg.PatientSession, tag string) {
	found := false
	for _, a := range s.SymptomsAsked {
		if a == tag {
			found = true
			break
		}
	}
	if !found {
		s.SymptomsAsked = append(s.SymptomsAsked, tag)
	}
	for i, p := range s.SymptomsPrompted {
		if p == tag {
			s.SymptomsPrompted = append(s.SymptomsPrompted[:i], s.SymptomsPrompted[i+1:]...)
			break
		}
	}
	if s.LastPromptedSymptom == tag {
		s.LastPromptedSymptom = ""
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
