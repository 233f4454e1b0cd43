// Package report builds the plain-text patient report served by the download
// endpoint. Rendering to PDF is an external concern; this produces the
// content a renderer would consume.
package report

import (
	"fmt"
	"strings"
	"time"

	"postop-monitor/pkg"
)

const maxConversationLines = 20

// Build assembles a readable report from a session snapshot.
func Build(s *pkg.PatientSession, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "POST-SURGICAL MONITORING REPORT\n")
	fmt.Fprintf(&b, "Patient: %s\n", s.PatientID)
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.Format(time.RFC1123))

	if s.Contact.Name != "" || s.Contact.Phone != "" || s.Contact.Email != "" {
		b.WriteString("CONTACT\n")
		if s.Contact.Name != "" {
			fmt.Fprintf(&b, "  Name:  %s\n", s.Contact.Name)
		}
		if s.Contact.Phone != "" {
			fmt.Fprintf(&b, "  Phone: %s\n", s.Contact.Phone)
		}
		if s.Contact.Email != "" {
			fmt.Fprintf(&b, "  Email: %s\n", s.Contact.Email)
		}
		b.WriteString("\n")
	}

	b.WriteString("SURGERY\n")
	if s.SurgeryInfo.Empty() {
		b.WriteString("  No surgery information on file.\n\n")
	} else {
		fmt.Fprintf(&b, "  Type: %s\n", s.SurgeryInfo.SurgeryType)
		if s.SurgeryInfo.SurgeryDate != "" {
			fmt.Fprintf(&b, "  Date: %s\n", s.SurgeryInfo.SurgeryDate)
		}
		if s.SurgeryInfo.Site != "" {
			fmt.Fprintf(&b, "  Site: %s\n", s.SurgeryInfo.Site)
		}
		if s.SurgeryInfo.Side != "" {
			fmt.Fprintf(&b, "  Side: %s\n", s.SurgeryInfo.Side)
		}
		if len(s.SurgeryInfo.CommonComplications) > 0 {
			fmt.Fprintf(&b, "  Common complications: %s\n", strings.Join(s.SurgeryInfo.CommonComplications, ", "))
		}
		if s.SurgeryInfo.RecoveryTimeline != "" {
			fmt.Fprintf(&b, "  Recovery timeline: %s\n", s.SurgeryInfo.RecoveryTimeline)
		}
		b.WriteString("\n")
	}

	b.WriteString("RISK STATUS\n")
	fmt.Fprintf(&b, "  Current level: %s\n", s.RiskLevel)
	fmt.Fprintf(&b, "  Dialogue stage: %s\n", s.DialogueStage)
	if len(s.SymptomsAsked) > 0 {
		fmt.Fprintf(&b, "  Symptoms assessed: %s\n", strings.Join(s.SymptomsAsked, ", "))
	} else {
		b.WriteString("  Symptoms assessed: none\n")
	}
	b.WriteString("\n")

	if len(s.Uploads) > 0 {
		b.WriteString("UPLOADS\n")
		for _, u := range s.Uploads {
			fmt.Fprintf(&b, "  [%s] %s\n", u.Timestamp.Format("2006-01-02 15:04"), u.Filename)
			if u.Analysis != "" {
				fmt.Fprintf(&b, "    %s\n", firstLine(u.Analysis))
			}
		}
		b.WriteString("\n")
	}

	if len(s.Conversation) > 0 {
		b.WriteString("RECENT CONVERSATION\n")
		msgs := s.Conversation
		if len(msgs) > maxConversationLines {
			msgs = msgs[len(msgs)-maxConversationLines:]
		}
		for _, m := range msgs {
			who := "Assistant"
			if m.Role == pkg.RolePatient {
				who = "Patient"
			}
			fmt.Fprintf(&b, "  [%s] %s: %s\n", m.Timestamp.Format("15:04"), who, firstLine(m.Content))
		}
	}

	return b.String()
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i != -1 {
		return text[:i]
	}
	return text
}
