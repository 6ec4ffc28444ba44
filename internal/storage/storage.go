package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"friendfinder/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned by finders when no record matches.
var ErrNotFound = errors.New("record not found")

// Storage абстрагує персистентний шар (PostgreSQL + Redis), щоб ядро
// матчингу можна було тестувати проти in-memory реалізації.
type Storage interface {
	SaveSession(session *models.RandomChatSession) error
	GetSessionByID(sessionID string) (*models.RandomChatSession, error)
	GetActiveSessionForUser(userID string) (*models.RandomChatSession, error)
	GetActiveSessionIDs() ([]string, error)

	SaveMessage(msg *models.SessionMessage) error
	GetSessionMessages(sessionID string, limit int) ([]models.SessionMessage, error)

	SaveReport(report *models.Report) error
	HasReport(reporterID, sessionID, reportedID string) (bool, error)
	CountRecentReportsAgainst(userID string, since time.Time) (int64, error)
	GetReportsAgainst(userID string) ([]models.Report, error)

	IsUserSuspended(userID string) (bool, error)
	SuspendUser(userID string, d time.Duration) error
	UnsuspendUser(userID string) error

	AddUserToSearchQueue(userID string) error
	RemoveUserFromSearchQueue(userID string) error
	GetSearchingUsers() ([]string, error)

	PublishEvent(channel string, ev models.Event) error
}

// Service реалізує Storage поверх GORM (PostgreSQL) та go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveSession зберігає (створює або оновлює) сесію в PostgreSQL.
func (s *Service) SaveSession(session *models.RandomChatSession) error {
	return s.DB.Save(session).Error
}

// GetSessionByID повертає сесію за її ідентифікатором.
func (s *Service) GetSessionByID(sessionID string) (*models.RandomChatSession, error) {
	var session models.RandomChatSession
	err := s.DB.Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get session %s: %v", sessionID, err)
		return nil, err
	}
	return &session, nil
}

// GetActiveSessionForUser знаходить активну сесію, в якій бере участь користувач.
func (s *Service) GetActiveSessionForUser(userID string) (*models.RandomChatSession, error) {
	var session models.RandomChatSession
	err := s.DB.Where("status = ?", models.SessionActive).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to find active session for user %s: %v", userID, err)
		return nil, err
	}
	return &session, nil
}

// GetActiveSessionIDs повертає ідентифікатори всіх активних сесій.
func (s *Service) GetActiveSessionIDs() ([]string, error) {
	var ids []string
	if err := s.DB.Model(&models.RandomChatSession{}).
		Where("status = ?", models.SessionActive).
		Pluck("session_id", &ids).Error; err != nil {
		log.Printf("ERROR: Failed to retrieve active session IDs: %v", err)
		return nil, err
	}
	return ids, nil
}

// SaveMessage додає запис у append-only лог повідомлень сесії.
func (s *Service) SaveMessage(msg *models.SessionMessage) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for session %s: %v", msg.SessionID, err)
		return err
	}
	return nil
}

// GetSessionMessages повертає останні limit повідомлень сесії у порядку надходження.
func (s *Service) GetSessionMessages(sessionID string, limit int) ([]models.SessionMessage, error) {
	var msgs []models.SessionMessage
	q := s.DB.Where("session_id = ?", sessionID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		log.Printf("ERROR: Failed to get messages for session %s: %v", sessionID, err)
		return nil, err
	}
	// Розвертаємо у хронологічний порядок
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SaveReport створює скаргу. Дублікати по (reporter, session, reported)
// відхиляються унікальним індексом на рівні БД.
func (s *Service) SaveReport(report *models.Report) error {
	if err := s.DB.Create(report).Error; err != nil {
		log.Printf("ERROR: Failed to save report for session %s: %v", report.SessionID, err)
		return err
	}
	return nil
}

// HasReport перевіряє, чи вже існує скарга з такою трійкою.
func (s *Service) HasReport(reporterID, sessionID, reportedID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Report{}).
		Where("reporter_id = ? AND session_id = ? AND reported_id = ?", reporterID, sessionID, reportedID).
		Count(&count).Error
	return count > 0, err
}

// CountRecentReportsAgainst рахує скарги проти користувача, подані після since.
func (s *Service) CountRecentReportsAgainst(userID string, since time.Time) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Report{}).
		Where("reported_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	return count, err
}

// GetReportsAgainst повертає всі скарги проти користувача (для admin CLI).
func (s *Service) GetReportsAgainst(userID string) ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.Where("reported_id = ?", userID).Order("created_at desc").Find(&reports).Error
	return reports, err
}

// IsUserSuspended перевіряє прапорець тимчасового відсторонення в Redis.
func (s *Service) IsUserSuspended(userID string) (bool, error) {
	key := "suspend:" + userID
	status, err := s.Redis.Get(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// SuspendUser ставить прапорець відсторонення з TTL.
func (s *Service) SuspendUser(userID string, d time.Duration) error {
	return s.Redis.Set(s.Ctx, "suspend:"+userID, "active", d).Err()
}

// UnsuspendUser знімає прапорець відсторонення.
func (s *Service) UnsuspendUser(userID string) error {
	return s.Redis.Del(s.Ctx, "suspend:"+userID).Err()
}

// AddUserToSearchQueue додає користувача до дзеркала черги пошуку в Redis.
// Дзеркало не є авторитетним; воно потрібне лише для спостереження після рестарту.
func (s *Service) AddUserToSearchQueue(userID string) error {
	return s.Redis.SAdd(s.Ctx, "search_queue", userID).Err()
}

// RemoveUserFromSearchQueue видаляє користувача з дзеркала черги пошуку.
func (s *Service) RemoveUserFromSearchQueue(userID string) error {
	return s.Redis.SRem(s.Ctx, "search_queue", userID).Err()
}

// GetSearchingUsers повертає всіх користувачів у дзеркалі черги пошуку.
func (s *Service) GetSearchingUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, "search_queue").Result()
}

// PublishEvent публікує подію сесії в Redis Pub/Sub.
func (s *Service) PublishEvent(channel string, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, channel, string(data)).Err()
}

// SubscribeToSessionEvents підписується на канал трансляції подій сесій.
func (s *Service) SubscribeToSessionEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, "random-chat:events")
}
