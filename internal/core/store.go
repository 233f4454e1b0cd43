package core

import (
	"sync"
	"time"

	"postop-monitor/pkg"
)

// SessionStore holds per-patient dialogue state. The state machine only talks
// to this interface, so tests run against it without a live database or
// completion service.
type SessionStore interface {
	// Get returns the session for id, creating a fresh one on first touch.
	Get(id string) *pkg.PatientSession
	// Lookup returns the session without creating one.
	Lookup(id string) (*pkg.PatientSession, bool)
	// Upsert stores the session and stamps LastUpdated.
	Upsert(s *pkg.PatientSession)
	// All returns every known session.
	All() []*pkg.PatientSession
}

// MemoryStore is the in-process SessionStore. Sessions live for the process
// lifetime; the design assumes at most one in-flight mutation per patient at
// a time, the mutex only protects the map itself.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*pkg.PatientSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*pkg.PatientSession)}
}

func (m *MemoryStore) Get(id string) *pkg.PatientSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := newSession(id)
	m.sessions[id] = s
	return s
}

func (m *MemoryStore) Lookup(id string) (*pkg.PatientSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Upsert(s *pkg.PatientSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastUpdated = time.Now()
	m.sessions[s.PatientID] = s
}

func (m *MemoryStore) All() []*pkg.PatientSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*pkg.PatientSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func newSession(id string) *pkg.PatientSession {
	return &pkg.PatientSession{
		PatientID:        id,
		Conversation:     []pkg.Message{},
		Uploads:          []pkg.Upload{},
		RiskLevel:        pkg.RiskUnknown,
		Details:          map[string]string{},
		SymptomsAsked:    []string{},
		SymptomsPrompted: []string{},
		DialogueStage:    pkg.StageInitial,
		LastUpdated:      time.Now(),
	}
}
