package chathub

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"friendfinder/backend/internal/config"
	"friendfinder/backend/internal/localization"
	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/moderation"
	"friendfinder/backend/internal/storage"
)

// InboundEvent пов'язує подію з клієнтом, який її надіслав.
type InboundEvent struct {
	Client Client
	Event  models.Event
}

// ManagerService — головний диспетчер: приймає реєстрації, відключення та
// вхідні події від усіх клієнтів і виконує кожен обробник атомарно відносно
// in-memory стану черги та сесій.
type ManagerService struct {
	Presence  *Presence
	Matcher   *MatcherService
	Sessions  *SessionService
	Guard     *moderation.Guard
	Storage   storage.Storage
	Localizer *localization.Localizer

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan InboundEvent

	pubSubCh chan models.Event
	stopCh   chan struct{}
}

// NewManagerService збирає хаб з усіх сервісів ядра.
func NewManagerService(s storage.Storage) *ManagerService {
	presence := NewPresence()
	localizer := localization.NewLocalizer()
	sessions := NewSessionService(presence, s, localizer)
	matcher := NewMatcherService(sessions, s, presence, localizer)

	return &ManagerService{
		Presence:     presence,
		Matcher:      matcher,
		Sessions:     sessions,
		Guard:        moderation.NewGuard(),
		Storage:      s,
		Localizer:    localizer,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan InboundEvent, 64),
		pubSubCh:     make(chan models.Event, 64),
		stopCh:       make(chan struct{}),
	}
}

// Run запускає головний цикл хаба та фонові прибиральники. Блокує до Stop().
func (m *ManagerService) Run() {
	log.Println("Chat hub started.")

	m.Matcher.StartSweeper(m.stopCh)
	m.Guard.StartSweeper(m.stopCh)
	m.StartPubSubListener()

	for {
		select {
		case client := <-m.RegisterCh:
			m.Presence.Register(client)
			log.Printf("Client registered: %s", client.GetUserID())

		case client := <-m.UnregisterCh:
			m.handleDisconnect(client)

		case in := <-m.IncomingCh:
			m.dispatch(in)

		case ev := <-m.pubSubCh:
			// Подія від іншого процесу через Redis; локальні relays уже
			// виконані процесом-джерелом, тут лише журналюємо.
			log.Printf("Mirrored event from peer process: %s", ev.Name)

		case <-m.stopCh:
			log.Println("Chat hub stopped.")
			return
		}
	}
}

// Stop зупиняє цикл Run та фонові goroutines.
func (m *ManagerService) Stop() {
	close(m.stopCh)
}

// handleDisconnect must be idempotent: the unregister can race an explicit
// end-session for the same session.
func (m *ManagerService) handleDisconnect(client Client) {
	if !m.Presence.Unregister(client) {
		return // застарілий unregister після реконекту
	}
	log.Printf("Client disconnected: %s", client.GetUserID())

	if err := m.Matcher.LeaveQueue(client.GetUserID()); err != nil && !errors.Is(err, ErrNotQueued) {
		log.Printf("WARNING: Queue cleanup for %s: %v", client.GetUserID(), err)
	}
	m.Sessions.DisconnectUser(client.GetUserID())
	client.Close()
}

// dispatch виконує один обробник події. Будь-яка паніка всередині обробника
// конвертується в error-подію замість падіння процесу.
func (m *ManagerService) dispatch(in InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic in handler for %s: %v", in.Event.Name, r)
			m.Presence.RecordError(errors.New("handler panic"))
			m.sendError(in.Client, "internal_error", "internal server error", 0)
		}
	}()

	if err := m.handleEvent(in.Client, in.Event); err != nil {
		m.Presence.RecordError(err)
		retryAfter := 0
		if errors.Is(err, ErrTooManyReports) {
			retryAfter = int(config.ReportGateWindow / time.Second)
		}
		m.sendError(in.Client, ErrorCode(err), err.Error(), retryAfter)
	}
}

func (m *ManagerService) handleEvent(client Client, ev models.Event) error {
	userID := client.GetUserID()

	switch ev.Name {
	case models.EventUserRegister:
		var p models.UserRegisterPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		send(client, models.NewEvent(models.EventUserRegistered, models.UserRegisteredPayload{
			Success: true,
			UserID:  userID,
			AnonID:  client.GetAnonID(),
		}))
		return nil

	case models.EventJoinQueue:
		var p models.JoinQueuePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		if p.ChatType != "" {
			p.Preferences.ChatType = p.ChatType
		}
		result, err := m.Matcher.JoinQueue(userID, p.Preferences)
		if err != nil {
			return err
		}
		if result.Matched == nil {
			send(client, models.NewEvent(models.EventQueueJoined, models.QueueJoinedPayload{
				Position:          result.Position,
				EstimatedWaitTime: int(result.EstimatedWait / time.Second),
				AnonID:            result.Entry.AnonID,
			}))
		}
		// Якщо матч знайдено, обидві сторони вже отримали match-found.
		return nil

	case models.EventLeaveQueue:
		if err := m.Matcher.LeaveQueue(userID); err != nil {
			return err
		}
		send(client, models.NewEvent(models.EventQueueLeft, nil))
		return nil

	case models.EventMessageSend:
		var p models.MessageSendPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		verdict := m.Guard.ModerateContent(p.Content, userID, moderation.Options{})
		if !verdict.IsAllowed {
			m.sendError(client, "message_rejected", verdict.Reason, 0)
			return nil
		}
		msg, err := m.Sessions.SendMessage(p.SessionID, userID, verdict.FilteredContent, p.Type)
		if err != nil {
			return err
		}
		// Синхронне підтвердження відправнику, незалежне від relay.
		send(client, models.NewEvent(models.EventMessageReceived, models.MessageReceivedPayload{
			MessageID: msg.MessageID,
			SessionID: msg.SessionID,
			AnonID:    msg.SenderAnonID,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
			Type:      msg.Type,
			IsOwn:     true,
		}))
		return nil

	case models.EventTypingStart, models.EventTypingStop:
		var p models.TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		return m.Sessions.Typing(p.SessionID, userID, ev.Name == models.EventTypingStart)

	case models.EventEndSession:
		var p models.EndSessionPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		return m.Sessions.End(p.SessionID, userID, models.EndReasonUserLeft)

	case models.EventWebRTCOffer, models.EventWebRTCAnswer, models.EventWebRTCICE:
		var p models.SignalPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		return m.Sessions.Signal(p.SessionID, userID, signalOutName(ev.Name), p.Payload)

	default:
		return errors.New("unknown event: " + ev.Name)
	}
}

// signalOutName maps an inbound WebRTC event name to its outbound mirror.
func signalOutName(in string) string {
	switch in {
	case models.EventWebRTCOffer:
		return models.EventWebRTCOfferRecv
	case models.EventWebRTCAnswer:
		return models.EventWebRTCAnswerRecv
	default:
		return models.EventWebRTCICERecv
	}
}

// ErrorCode maps service errors to the stable codes exposed on the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidChatType), errors.Is(err, ErrInvalidReason):
		return "invalid_request"
	case errors.Is(err, ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, ErrAlreadyInSession):
		return "already_in_session"
	case errors.Is(err, ErrTooManyReports):
		return "too_many_reports"
	case errors.Is(err, ErrNotQueued):
		return "not_in_queue"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, ErrNotAParticipant):
		return "not_a_participant"
	case errors.Is(err, ErrAlreadyReported):
		return "already_reported"
	}
	return "internal_error"
}

func (m *ManagerService) sendError(client Client, code, message string, retryAfter int) {
	send(client, models.NewEvent(models.EventError, models.ErrorPayload{
		Code:       code,
		Message:    message,
		RetryAfter: retryAfter,
	}))
}

// send — неблокуюча доставка у канал клієнта.
func send(client Client, ev models.Event) {
	select {
	case client.GetSendChannel() <- ev:
	default:
		log.Printf("WARNING: Dropping event %s for slow client %s", ev.Name, client.GetUserID())
	}
}

// HealthReport агрегує стан ядра для зовнішнього моніторингу.
type HealthReport struct {
	Status           string           `json:"status"`
	Presence         PresenceSnapshot `json:"presence"`
	QueueSizes       map[string]int   `json:"queueSizes"`
	QueueTotal       int              `json:"queueTotal"`
	ActiveSessions   int              `json:"activeSessions"`
	SessionsEnded    int64            `json:"sessionsEnded"`
	SessionsReported int64            `json:"sessionsReported"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Health збирає документ стану для /health.
func (m *ManagerService) Health() HealthReport {
	sizes := m.Matcher.QueueSizes()
	total := 0
	for _, n := range sizes {
		total += n
	}
	ended, reported := m.Sessions.Counters()
	return HealthReport{
		Status:           "ok",
		Presence:         m.Presence.Snapshot(),
		QueueSizes:       sizes,
		QueueTotal:       total,
		ActiveSessions:   m.Sessions.ActiveCount(),
		SessionsEnded:    ended,
		SessionsReported: reported,
		Timestamp:        time.Now(),
	}
}
