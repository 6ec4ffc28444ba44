// Package telegram pushes moderation notifications to a moderators' chat via
// the Telegram Bot API. Every filed report is forwarded there so moderators
// can review it without polling the database.
package telegram

import (
	"fmt"
	"log"

	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/moderation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier implements chathub.ReportNotifier.
type Notifier struct {
	BotAPI          *tgbotapi.BotAPI
	ModeratorChatID int64
}

// NewNotifier creates a notifier for the given bot token and moderator chat.
func NewNotifier(token string, moderatorChatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &Notifier{BotAPI: bot, ModeratorChatID: moderatorChatID}, nil
}

// NotifyReport forwards a freshly filed report to the moderators' chat.
// Доставка best-effort: помилка лише журналюється.
func (n *Notifier) NotifyReport(report models.Report) {
	text := fmt.Sprintf(
		"🚨 New report\nSession: %s\nReason: %s (weight %d)\nReported user: %s\nDescription: %s",
		report.SessionID,
		report.Reason,
		moderation.ReasonWeight(report.Reason),
		report.ReportedID,
		report.Description,
	)

	msg := tgbotapi.NewMessage(n.ModeratorChatID, text)
	if _, err := n.BotAPI.Send(msg); err != nil {
		log.Printf("ERROR: Failed to notify moderators about report %s: %v", report.ReportID, err)
	}
}
