package core

import (
	"fmt"
	"sort"

	"postop-monitor/pkg"
)

// Dashboard derives the hospital-facing patient list from session state. It
// is a pure projection: entries are rebuilt from the store on every read, so
// they can never be stale.
type Dashboard struct {
	store SessionStore
}

func NewDashboard(store SessionStore) *Dashboard {
	return &Dashboard{store: store}
}

// Entries returns the triage-ordered patient list: high-risk sessions first,
// then known-but-non-high, then unknown, oldest-updated first within each
// bucket.
func (d *Dashboard) Entries() []pkg.DashboardEntry {
	sessions := d.store.All()
	entries := make([]pkg.DashboardEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, projectEntry(s))
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders entries by (risk != high, risk == unknown, last_updated)
// ascending.
func SortEntries(entries []pkg.DashboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aNotHigh, bNotHigh := a.RiskLevel != pkg.RiskHigh, b.RiskLevel != pkg.RiskHigh
		if aNotHigh != bNotHigh {
			return !aNotHigh
		}
		aUnknown, bUnknown := a.RiskLevel == pkg.RiskUnknown, b.RiskLevel == pkg.RiskUnknown
		if aUnknown != bUnknown {
			return !aUnknown
		}
		return a.LastUpdated.Before(b.LastUpdated)
	})
}

func projectEntry(s *pkg.PatientSession) pkg.DashboardEntry {
	name := s.Contact.Name
	if name == "" {
		name = fmt.Sprintf("Patient %s", s.PatientID)
	}
	level := s.RiskLevel
	if level == "" {
		level = pkg.RiskUnknown
	}
	return pkg.DashboardEntry{
		PatientID:         s.PatientID,
		Name:              name,
		RiskLevel:         level,
		LastUpdated:       s.LastUpdated,
		ConversationCount: len(s.Conversation),
		UploadCount:       len(s.Uploads),
		SurgeryInfo:       s.SurgeryInfo,
		SymptomsAsked:     s.SymptomsAsked,
	}
}

// DoctorPayload assembles the snapshot attached to an urgent notification:
// the last five messages, the last three uploads, and the clinical context.
func (d *Dashboard) DoctorPayload(s *pkg.PatientSession, score int) pkg.DoctorPayload {
	msgs := s.Conversation
	if len(msgs) > 5 {
		msgs = msgs[len(msgs)-5:]
	}
	uploads := s.Uploads
	if len(uploads) > 3 {
		uploads = uploads[len(uploads)-3:]
	}
	return pkg.DoctorPayload{
		PatientID:     s.PatientID,
		RiskLevel:     s.RiskLevel,
		RiskScore:     score,
		SurgeryInfo:   s.SurgeryInfo,
		SymptomsAsked: s.SymptomsAsked,
		RecentMsgs:    msgs,
		LatestUploads: uploads,
		Contact:       s.Contact,
	}
}

// UpdateContact stores the patient's contact details so the dashboard card
// shows a name.
func UpdateContact(store SessionStore, patientID string, contact pkg.Contact) {
	s := store.Get(patientID)
	s.Contact = contact
	store.Upsert(s)
}
