package notify

import (
	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Telegram delivers notifications to a single chat.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    logrus.FieldLogger
}

// NewTelegram connects to the Telegram bot API.
func NewTelegram(token string, chatID int64, log logrus.FieldLogger) (*Telegram, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.WithField("bot", bot.Self.UserName).Info("telegram notifier connected")
	return &Telegram{bot: bot, chatID: chatID, log: log}, nil
}

// Notify implements Notifier.
func (t *Telegram) Notify(category Category, message string) {
	msg := tgbot.NewMessage(t.chatID, "["+string(category)+"] "+message)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.WithField("category", string(category)).WithError(err).Warn("telegram send failed")
	}
}

var _ Notifier = (*Telegram)(nil)
