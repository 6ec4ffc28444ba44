package chathub

import (
	"log"
	"sync"
	"time"

	"friendfinder/backend/internal/config"
	"friendfinder/backend/internal/localization"
	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/storage"

	"github.com/google/uuid"
)

// MatchResult is the outcome of a join-queue request: either an immediate
// match or a queued entry with its position and wait estimate.
type MatchResult struct {
	Matched       *models.RandomChatSession
	Entry         *models.QueueEntry
	Position      int
	EstimatedWait time.Duration
}

// QueueStatus describes a queued user's current standing.
type QueueStatus struct {
	Position      int
	EstimatedWait time.Duration
	Entry         *models.QueueEntry
}

// MatcherService відповідає за чергу очікування та алгоритм пошуку
// співрозмовників. Черга живе в пам'яті (один процес — один matching
// authority); Redis-дзеркало ведеться лише для спостереження.
type MatcherService struct {
	Sessions  *SessionService
	Storage   storage.Storage
	Presence  *Presence
	Localizer *localization.Localizer

	mu sync.Mutex
	// Queue — впорядкована за часом приєднання черга (FIFO).
	Queue []*models.QueueEntry
	// Index — швидка перевірка наявності запису за UserID.
	Index map[string]*models.QueueEntry

	// avgWait — ковзне середнє часу очікування до матчу, за типом чату.
	avgWait map[string]time.Duration

	now func() time.Time
}

// NewMatcherService створює новий Matcher.
func NewMatcherService(sessions *SessionService, s storage.Storage, p *Presence, loc *localization.Localizer) *MatcherService {
	return &MatcherService{
		Sessions:  sessions,
		Storage:   s,
		Presence:  p,
		Localizer: loc,
		Index:     make(map[string]*models.QueueEntry),
		avgWait:   make(map[string]time.Duration),
		now:       time.Now,
	}
}

// JoinQueue додає користувача в чергу або одразу створює сесію, якщо
// сумісний кандидат уже чекає. Видалення з черги та створення сесії
// відбуваються під одним м'ютексом, тому подвійний матч неможливий.
func (m *MatcherService) JoinQueue(userID string, prefs models.Preferences) (*MatchResult, error) {
	if !models.ValidChatType(prefs.ChatType) {
		return nil, ErrInvalidChatType
	}
	if len(prefs.Interests) > config.MaxInterestTags {
		prefs.Interests = prefs.Interests[:config.MaxInterestTags]
	}

	// Abuse gate: спочатку швидкий прапорець, потім підрахунок свіжих скарг.
	if suspended, err := m.Storage.IsUserSuspended(userID); err == nil && suspended {
		return nil, ErrTooManyReports
	}
	count, err := m.Storage.CountRecentReportsAgainst(userID, m.now().Add(-config.ReportGateWindow))
	if err != nil {
		log.Printf("WARNING: Report-gate check failed for %s: %v", userID, err)
	}
	if count >= config.ReportGateThreshold {
		return nil, ErrTooManyReports
	}

	m.mu.Lock()
	if _, ok := m.Index[userID]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyQueued
	}
	// Перевірка активної сесії — під м'ютексом черги: Register теж
	// виконується під ним, тож гонки чергою/сесією немає.
	if m.Sessions.HasActiveSession(userID) {
		m.mu.Unlock()
		return nil, ErrAlreadyInSession
	}

	entry := &models.QueueEntry{
		UserID:      userID,
		AnonID:      anonIDFor(m.Presence, userID),
		Preferences: prefs,
		JoinedAt:    m.now(),
		Active:      true,
	}

	partner := m.takePartnerLocked(entry)
	if partner != nil {
		// Вилучення з черги та реєстрація сесії — під одним м'ютексом:
		// повторний JoinQueue будь-кого з пари вже бачить активну сесію.
		// I/O (Redis-дзеркало, persistence, нотифікації) — після unlock.
		m.recordWaitLocked(partner)
		session := m.Sessions.Register(entry, partner)
		m.mu.Unlock()

		_ = m.Storage.RemoveUserFromSearchQueue(partner.UserID)
		if err := m.Sessions.Announce(session); err != nil {
			return nil, err
		}
		return &MatchResult{Matched: session}, nil
	}

	m.Queue = append(m.Queue, entry)
	m.Index[userID] = entry
	position := m.positionLocked(entry)
	estimate := m.estimateLocked(prefs.ChatType, 0)
	m.mu.Unlock()

	if err := m.Storage.AddUserToSearchQueue(userID); err != nil {
		log.Printf("WARNING: Failed to mirror queue entry for %s: %v", userID, err)
	}

	return &MatchResult{Entry: entry, Position: position, EstimatedWait: estimate}, nil
}

// takePartnerLocked сканує чергу у FIFO-порядку та вилучає першого сумісного
// кандидата. Жорсткий фільтр — лише однаковий тип чату; м'який скоринг
// (мова, спільні інтереси) перебиває FIFO тільки серед кандидатів, що
// приєдналися в один момент.
func (m *MatcherService) takePartnerLocked(entry *models.QueueEntry) *models.QueueEntry {
	var best *models.QueueEntry
	bestIdx := -1
	for i, candidate := range m.Queue {
		if candidate.UserID == entry.UserID {
			continue
		}
		if candidate.Preferences.ChatType != entry.Preferences.ChatType {
			continue
		}
		if best == nil {
			best, bestIdx = candidate, i
			continue
		}
		if candidate.JoinedAt.Equal(best.JoinedAt) &&
			scorePreferences(entry.Preferences, candidate.Preferences) > scorePreferences(entry.Preferences, best.Preferences) {
			best, bestIdx = candidate, i
		}
		// Кандидати строго пізніші за best — FIFO вже вирішив.
	}
	if best == nil {
		return nil
	}
	m.Queue = append(m.Queue[:bestIdx], m.Queue[bestIdx+1:]...)
	delete(m.Index, best.UserID)
	return best
}

// scorePreferences — налаштовуваний м'який скоринг; не впливає на коректність.
func scorePreferences(a, b models.Preferences) int {
	score := 0
	if a.Language != "" && a.Language == b.Language {
		score += config.LanguageMatchScore
	}
	tags := make(map[string]bool, len(a.Interests))
	for _, t := range a.Interests {
		tags[t] = true
	}
	for _, t := range b.Interests {
		if tags[t] {
			score += config.SharedInterestScore
		}
	}
	return score
}

// LeaveQueue removes the caller's entry. Absent entries are reported as
// ErrNotQueued (the REST layer maps this to 404); tests document the choice.
func (m *MatcherService) LeaveQueue(userID string) error {
	m.mu.Lock()
	entry, ok := m.Index[userID]
	if !ok {
		m.mu.Unlock()
		return ErrNotQueued
	}
	m.removeLocked(entry)
	m.mu.Unlock()

	if err := m.Storage.RemoveUserFromSearchQueue(userID); err != nil {
		log.Printf("WARNING: Failed to unmirror queue entry for %s: %v", userID, err)
	}
	return nil
}

// Status returns the user's queue position and a decayed wait estimate.
func (m *MatcherService) Status(userID string) (*QueueStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.Index[userID]
	if !ok {
		return nil, ErrNotQueued
	}
	waited := m.now().Sub(entry.JoinedAt)
	return &QueueStatus{
		Position:      m.positionLocked(entry),
		EstimatedWait: m.estimateLocked(entry.Preferences.ChatType, waited),
		Entry:         entry,
	}, nil
}

// QueueSizes returns per-chat-type queue lengths for the health document.
func (m *MatcherService) QueueSizes() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make(map[string]int)
	for _, entry := range m.Queue {
		sizes[entry.Preferences.ChatType]++
	}
	return sizes
}

// ExpireStale видаляє записи, старші за TTL, і повідомляє їхніх власників.
func (m *MatcherService) ExpireStale() []*models.QueueEntry {
	cutoff := m.now().Add(-config.QueueEntryTTL)

	m.mu.Lock()
	var expired []*models.QueueEntry
	kept := m.Queue[:0]
	for _, entry := range m.Queue {
		if entry.JoinedAt.Before(cutoff) {
			delete(m.Index, entry.UserID)
			expired = append(expired, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	m.Queue = kept
	m.mu.Unlock()

	for _, entry := range expired {
		_ = m.Storage.RemoveUserFromSearchQueue(entry.UserID)
		if client, ok := m.Presence.Get(entry.UserID); ok {
			payload := models.ErrorPayload{
				Code:    "queue_expired",
				Message: m.Localizer.GetString(entry.Preferences.Language, localization.KeyQueueExpired),
			}
			select {
			case client.GetSendChannel() <- models.NewEvent(models.EventQueueExpired, payload):
			default:
			}
		}
		log.Printf("Queue entry for %s expired after %s", entry.UserID, config.QueueEntryTTL)
	}
	return expired
}

// StartSweeper запускає фонове прибирання застарілих записів до закриття stop.
func (m *MatcherService) StartSweeper(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(config.QueueSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.ExpireStale()
			case <-stop:
				return
			}
		}
	}()
}

// positionLocked: 1 + кількість більш ранніх записів того ж типу чату.
func (m *MatcherService) positionLocked(entry *models.QueueEntry) int {
	position := 1
	for _, other := range m.Queue {
		if other.UserID == entry.UserID {
			continue
		}
		if other.Preferences.ChatType == entry.Preferences.ChatType && other.JoinedAt.Before(entry.JoinedAt) {
			position++
		}
	}
	return position
}

// estimateLocked: ковзне середнє мінус уже прочекане, з межами
// [5s, EstimatedWaitCeiling]. Точність не є критичною — це підказка для UI.
func (m *MatcherService) estimateLocked(chatType string, waited time.Duration) time.Duration {
	avg, ok := m.avgWait[chatType]
	if !ok {
		avg = config.DefaultEstimatedWait
	}
	est := avg - waited
	if est < 5*time.Second {
		est = 5 * time.Second
	}
	if est > config.EstimatedWaitCeiling {
		est = config.EstimatedWaitCeiling
	}
	return est
}

// recordWaitLocked оновлює ковзне середнє фактичним часом очікування.
func (m *MatcherService) recordWaitLocked(entry *models.QueueEntry) {
	sample := m.now().Sub(entry.JoinedAt)
	chatType := entry.Preferences.ChatType
	if avg, ok := m.avgWait[chatType]; ok {
		m.avgWait[chatType] = (avg*4 + sample) / 5
	} else {
		m.avgWait[chatType] = sample
	}
}

func (m *MatcherService) removeLocked(entry *models.QueueEntry) {
	delete(m.Index, entry.UserID)
	for i, other := range m.Queue {
		if other.UserID == entry.UserID {
			m.Queue = append(m.Queue[:i], m.Queue[i+1:]...)
			return
		}
	}
}

// anonIDFor повертає анонімний хендл клієнта, або генерує новий для
// fallback-запитів без живого каналу.
func anonIDFor(p *Presence, userID string) string {
	if client, ok := p.Get(userID); ok && client.GetAnonID() != "" {
		return client.GetAnonID()
	}
	return uuid.New().String()
}
