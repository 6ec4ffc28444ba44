package storage

import (
	"sort"
	"sync"
	"time"

	"friendfinder/backend/internal/models"

	"github.com/google/uuid"
)

// Memory is an in-memory Storage implementation. It backs unit tests and
// single-process development runs where PostgreSQL/Redis are not available.
// The matching core only ever talks to the Storage interface, so Memory and
// Service are interchangeable.
type Memory struct {
	mu sync.RWMutex

	sessions    map[string]*models.RandomChatSession
	messages    map[string][]models.SessionMessage
	reports     []models.Report
	suspensions map[string]time.Time
	searchQueue map[string]bool
	published   []models.Event
}

// NewMemory створює порожнє in-memory сховище.
func NewMemory() *Memory {
	return &Memory{
		sessions:    make(map[string]*models.RandomChatSession),
		messages:    make(map[string][]models.SessionMessage),
		suspensions: make(map[string]time.Time),
		searchQueue: make(map[string]bool),
	}
}

func (m *Memory) SaveSession(session *models.RandomChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.SessionID] = &cp
	return nil
}

func (m *Memory) GetSessionByID(sessionID string) (*models.RandomChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (m *Memory) GetActiveSessionForUser(userID string) (*models.RandomChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, session := range m.sessions {
		if session.Status == models.SessionActive && session.HasParticipant(userID) {
			cp := *session
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetActiveSessionIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, session := range m.sessions {
		if session.Status == models.SessionActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) SaveMessage(msg *models.SessionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *Memory) GetSessionMessages(sessionID string, limit int) ([]models.SessionMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.SessionMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) SaveReport(report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.ReportID == "" {
		report.ReportID = uuid.New().String()
	}
	if report.Status == "" {
		report.Status = "new"
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	m.reports = append(m.reports, *report)
	return nil
}

func (m *Memory) HasReport(reporterID, sessionID, reportedID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reports {
		if r.ReporterID == reporterID && r.SessionID == sessionID && r.ReportedID == reportedID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountRecentReportsAgainst(userID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, r := range m.reports {
		if r.ReportedID == userID && r.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) GetReportsAgainst(userID string) ([]models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Report
	for _, r := range m.reports {
		if r.ReportedID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) IsUserSuspended(userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.suspensions[userID]
	return ok && time.Now().Before(until), nil
}

func (m *Memory) SuspendUser(userID string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspensions[userID] = time.Now().Add(d)
	return nil
}

func (m *Memory) UnsuspendUser(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.suspensions, userID)
	return nil
}

func (m *Memory) AddUserToSearchQueue(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchQueue[userID] = true
	return nil
}

func (m *Memory) RemoveUserFromSearchQueue(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.searchQueue, userID)
	return nil
}

func (m *Memory) GetSearchingUsers() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id := range m.searchQueue {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) PublishEvent(channel string, ev models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, ev)
	return nil
}

// PublishedEvents returns a copy of everything published so far (test helper).
func (m *Memory) PublishedEvents() []models.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Event, len(m.published))
	copy(out, m.published)
	return out
}
