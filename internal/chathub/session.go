package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"friendfinder/backend/internal/config"
	"friendfinder/backend/internal/localization"
	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/storage"

	"github.com/google/uuid"
)

// ReportNotifier receives a copy of every filed report (e.g., the Telegram
// moderator bot). Notification is best-effort and must never fail the caller.
type ReportNotifier interface {
	NotifyReport(report models.Report)
}

// SessionService владіє життєвим циклом сесій random-chat: waiting → active →
// ended/reported. Усі мутації проходять через один м'ютекс, тому кожна
// операція атомарна відносно in-memory стану. Мутація стану завжди
// виконується до будь-якого I/O у сховище.
type SessionService struct {
	Presence  *Presence
	Storage   storage.Storage
	Localizer *localization.Localizer
	Notifier  ReportNotifier

	mu sync.Mutex
	// sessions тримає всі нетермінальні сесії за SessionID.
	sessions map[string]*models.RandomChatSession
	// byUser — вказівник "поточна сесія" користувача.
	byUser map[string]string

	totalEnded    int64
	totalReported int64
}

// NewSessionService створює сервіс сесій.
func NewSessionService(p *Presence, s storage.Storage, loc *localization.Localizer) *SessionService {
	return &SessionService{
		Presence:  p,
		Storage:   s,
		Localizer: loc,
		sessions:  make(map[string]*models.RandomChatSession),
		byUser:    make(map[string]string),
	}
}

// SetNotifier підключає нотифікатор скарг (опційно).
func (ss *SessionService) SetNotifier(n ReportNotifier) { ss.Notifier = n }

// HasActiveSession reports whether the user is a participant of a
// non-terminal session.
func (ss *SessionService) HasActiveSession(userID string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, ok := ss.byUser[userID]
	return ok
}

// ActiveCount returns the number of non-terminal sessions.
func (ss *SessionService) ActiveCount() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

// Counters returns lifetime ended/reported tallies for health reporting.
func (ss *SessionService) Counters() (ended, reported int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.totalEnded, ss.totalReported
}

// Register builds the session record and claims both participants'
// current-session slots. In-memory only, no I/O: the matcher calls this while
// still holding its queue mutex, so a concurrent re-join by either
// participant already observes the active session. Announce finishes the job.
func (ss *SessionService) Register(a, b *models.QueueEntry) *models.RandomChatSession {
	session := &models.RandomChatSession{
		SessionID: uuid.New().String(),
		User1ID:   a.UserID,
		User2ID:   b.UserID,
		Anon1ID:   a.AnonID,
		Anon2ID:   b.AnonID,
		Lang1:     a.Preferences.Language,
		Lang2:     b.Preferences.Language,
		ChatType:  a.Preferences.ChatType,
		Status:    models.SessionActive,
		StartedAt: time.Now(),
	}

	ss.mu.Lock()
	ss.sessions[session.SessionID] = session
	ss.byUser[a.UserID] = session.SessionID
	ss.byUser[b.UserID] = session.SessionID
	ss.mu.Unlock()

	return session
}

// Announce persists a registered session, binds both live connections to it
// and pushes match-found to both sides.
func (ss *SessionService) Announce(session *models.RandomChatSession) error {
	for _, userID := range []string{session.User1ID, session.User2ID} {
		if client, ok := ss.Presence.Get(userID); ok {
			client.SetSessionID(session.SessionID)
		}
	}

	if err := ss.Storage.SaveSession(session); err != nil {
		log.Printf("ERROR: Failed to save new session %s: %v", session.SessionID, err)
	}

	ss.notifyMatch(session, session.User1ID, session.Anon2ID)
	ss.notifyMatch(session, session.User2ID, session.Anon1ID)

	log.Printf("Match created: %s and %s in session %s", session.User1ID, session.User2ID, session.SessionID)
	return nil
}

// Create pairs two queue entries into an active session and notifies both
// sides with a match-found event.
func (ss *SessionService) Create(a, b *models.QueueEntry) (*models.RandomChatSession, error) {
	session := ss.Register(a, b)
	return session, ss.Announce(session)
}

func (ss *SessionService) notifyMatch(session *models.RandomChatSession, userID, partnerAnonID string) {
	payload := models.MatchFoundPayload{
		SessionID: session.SessionID,
		ChatType:  session.ChatType,
		Partner: models.PartnerInfo{
			AnonID:   partnerAnonID,
			Username: partnerAnonID,
			IsActive: true,
		},
		Message: ss.Localizer.GetString(session.LangOf(userID), localization.KeyMatchFound),
	}
	ss.relay(userID, models.NewEvent(models.EventMatchFound, payload))
	ss.publish(models.NewEvent(models.EventMatchFound, payload))
}

// SendMessage appends content to the session's message log, relays it to the
// partner only, and returns the stored message so the sender can be acked.
// Content is expected to have passed moderation already.
func (ss *SessionService) SendMessage(sessionID, senderID, content, msgType string) (*models.SessionMessage, error) {
	if msgType == "" {
		msgType = "text"
	}

	ss.mu.Lock()
	session, err := ss.lookupLocked(sessionID)
	if err != nil {
		ss.mu.Unlock()
		return nil, ss.inactiveError(sessionID)
	}
	if err := assertParticipant(session, senderID); err != nil {
		ss.mu.Unlock()
		return nil, err
	}
	if session.Status != models.SessionActive {
		ss.mu.Unlock()
		return nil, ErrSessionNotActive
	}

	msg := &models.SessionMessage{
		MessageID:    uuid.New().String(),
		SessionID:    sessionID,
		SenderAnonID: session.AnonIDOf(senderID),
		Content:      content,
		Type:         msgType,
		CreatedAt:    time.Now(),
	}
	session.MessageCount++
	partnerID := session.PartnerOf(senderID)
	ss.mu.Unlock()

	// Persistence після мутації in-memory стану; помилка запису не скасовує relay.
	if err := ss.Storage.SaveMessage(msg); err != nil {
		log.Printf("ERROR: Failed to persist message %s: %v", msg.MessageID, err)
	}

	payload := models.MessageReceivedPayload{
		MessageID: msg.MessageID,
		SessionID: sessionID,
		AnonID:    msg.SenderAnonID,
		Content:   content,
		Timestamp: msg.CreatedAt,
		Type:      msgType,
	}
	ss.relay(partnerID, models.NewEvent(models.EventMessageReceived, payload))
	ss.publish(models.NewEvent(models.EventMessageReceived, payload))

	return msg, nil
}

// Typing relays a typing indicator to the partner. Pure relay, no log entry.
func (ss *SessionService) Typing(sessionID, senderID string, typing bool) error {
	ss.mu.Lock()
	session, err := ss.lookupLocked(sessionID)
	if err != nil {
		ss.mu.Unlock()
		return ss.inactiveError(sessionID)
	}
	if err := assertParticipant(session, senderID); err != nil {
		ss.mu.Unlock()
		return err
	}
	if session.Status != models.SessionActive {
		ss.mu.Unlock()
		return ErrSessionNotActive
	}
	partnerID := session.PartnerOf(senderID)
	anonID := session.AnonIDOf(senderID)
	ss.mu.Unlock()

	payload := models.TypingReceivedPayload{SessionID: sessionID, AnonID: anonID, Typing: typing}
	ss.relay(partnerID, models.NewEvent(models.EventTypingReceived, payload))
	return nil
}

// Signal relays an opaque WebRTC payload (offer/answer/ICE) to the partner
// verbatim. The server never interprets the payload.
func (ss *SessionService) Signal(sessionID, senderID, outEvent string, payload json.RawMessage) error {
	ss.mu.Lock()
	session, err := ss.lookupLocked(sessionID)
	if err != nil {
		ss.mu.Unlock()
		return ss.inactiveError(sessionID)
	}
	if err := assertParticipant(session, senderID); err != nil {
		ss.mu.Unlock()
		return err
	}
	if session.Status != models.SessionActive {
		ss.mu.Unlock()
		return ErrSessionNotActive
	}
	partnerID := session.PartnerOf(senderID)
	anonID := session.AnonIDOf(senderID)
	ss.mu.Unlock()

	out := models.SignalReceivedPayload{SessionID: sessionID, AnonID: anonID, Payload: payload}
	ss.relay(partnerID, models.NewEvent(outEvent, out))
	return nil
}

// End transitions the session to a terminal status and notifies the remaining
// participant. Calling End on an already-ended session is a success no-op, so
// an explicit end racing a disconnect never double-notifies.
//
// actorID is the participant that triggered the end ("" for system-initiated
// ends such as queue timeouts); reason is actor-relative (user_left) and is
// translated to the partner's point of view (partner_left).
func (ss *SessionService) End(sessionID, actorID, reason string) error {
	ss.mu.Lock()
	session, ok := ss.sessions[sessionID]
	if !ok {
		// Уже завершена або ніколи не існувала. Розрізняємо через сховище.
		ss.mu.Unlock()
		if stored, err := ss.Storage.GetSessionByID(sessionID); err == nil && stored.IsTerminal() {
			return nil
		}
		return ErrSessionNotFound
	}
	if actorID != "" {
		if err := assertParticipant(session, actorID); err != nil {
			ss.mu.Unlock()
			return err
		}
	}
	if session.IsTerminal() {
		ss.mu.Unlock()
		return nil
	}

	if reason == models.EndReasonReported {
		session.Status = models.SessionReported
		ss.totalReported++
	} else {
		session.Status = models.SessionEnded
	}
	ss.totalEnded++
	session.EndReason = reason
	session.EndedAt = time.Now()

	delete(ss.sessions, sessionID)
	delete(ss.byUser, session.User1ID)
	delete(ss.byUser, session.User2ID)
	ss.mu.Unlock()

	// Скидаємо вказівник "поточна сесія" на обох каналах.
	for _, userID := range []string{session.User1ID, session.User2ID} {
		if client, ok := ss.Presence.Get(userID); ok && client.GetSessionID() == sessionID {
			client.SetSessionID("")
		}
	}

	if err := ss.Storage.SaveSession(session); err != nil {
		log.Printf("ERROR: Failed to persist ended session %s: %v", sessionID, err)
	}

	// Повідомляємо співрозмовника з його точки зору.
	partnerReason := reason
	if reason == models.EndReasonUserLeft {
		partnerReason = models.EndReasonPartnerLeft
	}

	notify := func(userID, r string) {
		payload := models.SessionEndedPayload{
			SessionID: sessionID,
			Reason:    r,
			Timestamp: session.EndedAt,
			Message:   ss.endMessage(session.LangOf(userID), r),
		}
		ss.relay(userID, models.NewEvent(models.EventSessionEnded, payload))
	}

	if actorID != "" {
		notify(session.PartnerOf(actorID), partnerReason)
	} else {
		notify(session.User1ID, partnerReason)
		notify(session.User2ID, partnerReason)
	}

	ss.publish(models.NewEvent(models.EventSessionEnded, models.SessionEndedPayload{
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: session.EndedAt,
	}))

	log.Printf("Session %s ended (reason: %s)", sessionID, reason)
	return nil
}

func (ss *SessionService) endMessage(lang, reason string) string {
	switch reason {
	case models.EndReasonPartnerDisconnected:
		return ss.Localizer.GetString(lang, localization.KeyPartnerDisconnected)
	case models.EndReasonReported:
		return ss.Localizer.GetString(lang, localization.KeySessionReported)
	default:
		return ss.Localizer.GetString(lang, localization.KeyPartnerLeft)
	}
}

// DisconnectUser sweeps every non-terminal session containing the user and
// ends it with reason partner_disconnected. Idempotent: a concurrent explicit
// end makes the sweep a no-op.
func (ss *SessionService) DisconnectUser(userID string) {
	ss.mu.Lock()
	sessionID, ok := ss.byUser[userID]
	ss.mu.Unlock()
	if !ok {
		return
	}
	if err := ss.End(sessionID, userID, models.EndReasonPartnerDisconnected); err != nil {
		log.Printf("WARNING: Disconnect sweep for user %s: %v", userID, err)
	}
}

// FileReport records a report against the partner and force-ends the session.
// Evidence message ids are filtered to messages belonging to the session.
func (ss *SessionService) FileReport(reporterID, sessionID, reason, description string, messageIDs []string) (*models.Report, error) {
	if !models.ValidReportReason(reason) {
		return nil, ErrInvalidReason
	}

	ss.mu.Lock()
	session, ok := ss.sessions[sessionID]
	ss.mu.Unlock()
	if !ok {
		// Скарга можлива й на щойно завершену сесію.
		stored, err := ss.Storage.GetSessionByID(sessionID)
		if err != nil {
			return nil, ErrSessionNotFound
		}
		session = stored
	}
	if err := assertParticipant(session, reporterID); err != nil {
		return nil, err
	}
	reportedID := session.PartnerOf(reporterID)

	exists, err := ss.Storage.HasReport(reporterID, sessionID, reportedID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyReported
	}

	evidence := ss.filterEvidence(sessionID, messageIDs)
	report := &models.Report{
		ReporterID:         reporterID,
		ReportedID:         reportedID,
		SessionID:          sessionID,
		Reason:             reason,
		Description:        description,
		EvidenceMessageIDs: evidence,
		CreatedAt:          time.Now(),
	}
	if err := ss.Storage.SaveReport(report); err != nil {
		return nil, err
	}

	// session і ss.sessions[sessionID] — один вказівник, доки сесія жива;
	// подальший SaveSession через End зафіксує інкремент.
	ss.mu.Lock()
	session.ReportCount++
	ss.mu.Unlock()

	// Скарга примусово завершує сесію.
	if err := ss.End(sessionID, reporterID, models.EndReasonReported); err != nil {
		log.Printf("WARNING: Ending reported session %s: %v", sessionID, err)
	}
	_ = ss.Storage.SaveSession(session)

	// Переступили поріг — тимчасове відсторонення від матчингу.
	count, err := ss.Storage.CountRecentReportsAgainst(reportedID, time.Now().Add(-config.ReportGateWindow))
	if err == nil && count >= config.ReportGateThreshold {
		if err := ss.Storage.SuspendUser(reportedID, config.ReportGateWindow); err != nil {
			log.Printf("ERROR: Failed to suspend user %s: %v", reportedID, err)
		}
	}

	if ss.Notifier != nil {
		ss.Notifier.NotifyReport(*report)
	}

	return report, nil
}

// filterEvidence keeps only ids of messages that belong to the session.
func (ss *SessionService) filterEvidence(sessionID string, messageIDs []string) string {
	if len(messageIDs) == 0 {
		return ""
	}
	msgs, err := ss.Storage.GetSessionMessages(sessionID, 0)
	if err != nil {
		log.Printf("WARNING: Evidence filter could not load messages for %s: %v", sessionID, err)
		return ""
	}
	known := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		known[m.MessageID] = true
	}
	var kept []string
	for _, id := range messageIDs {
		if known[id] {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	data, _ := json.Marshal(kept)
	return string(data)
}

// Snapshot returns the user's active session with the last N messages, for
// the REST session endpoint and the HTTP fallback poller.
func (ss *SessionService) Snapshot(userID string) (*models.RandomChatSession, []models.SessionMessage, error) {
	ss.mu.Lock()
	sessionID, ok := ss.byUser[userID]
	var session *models.RandomChatSession
	if ok {
		cp := *ss.sessions[sessionID]
		session = &cp
	}
	ss.mu.Unlock()

	if session == nil {
		stored, err := ss.Storage.GetActiveSessionForUser(userID)
		if err != nil {
			return nil, nil, ErrSessionNotFound
		}
		session = stored
	}

	msgs, err := ss.Storage.GetSessionMessages(session.SessionID, config.SessionSnapshotMessages)
	if err != nil {
		return session, nil, nil
	}
	return session, msgs, nil
}

// lookupLocked resolves a session id; the caller must hold ss.mu.
func (ss *SessionService) lookupLocked(sessionID string) (*models.RandomChatSession, error) {
	session, ok := ss.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// inactiveError розрізняє завершену сесію (conflict) та неіснуючу (not found)
// для операцій, яким потрібна жива сесія.
func (ss *SessionService) inactiveError(sessionID string) error {
	if stored, err := ss.Storage.GetSessionByID(sessionID); err == nil && stored.IsTerminal() {
		return ErrSessionNotActive
	}
	return ErrSessionNotFound
}

// assertParticipant is the single membership guard used by every mutating
// session operation.
func assertParticipant(session *models.RandomChatSession, userID string) error {
	if !session.HasParticipant(userID) {
		return ErrNotAParticipant
	}
	return nil
}

// relay pushes an event to the user's live channel, best-effort: якщо канал
// відсутній або переповнений, подія відкидається і стан сесії не відкочується.
func (ss *SessionService) relay(userID string, ev models.Event) {
	client, ok := ss.Presence.Get(userID)
	if !ok {
		return
	}
	select {
	case client.GetSendChannel() <- ev:
	default:
		log.Printf("WARNING: Dropping event %s for slow client %s", ev.Name, userID)
	}
}

// publish дублює подію в Redis Pub/Sub для пасивних реплік.
func (ss *SessionService) publish(ev models.Event) {
	if err := ss.Storage.PublishEvent("random-chat:events", ev); err != nil {
		log.Printf("WARNING: Failed to publish event %s: %v", ev.Name, err)
	}
}
