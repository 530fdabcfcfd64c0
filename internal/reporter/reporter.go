package reporter

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reporter sends short failure notices about scrape runs to a Telegram admin chat.
// It is nil-safe: if adminID is 0 or the receiver is nil, Notify is a no-op.
type Reporter struct {
	bot     Sender
	adminID int64
}

func New(bot Sender, adminID int64) *Reporter {
	return &Reporter{bot: bot, adminID: adminID}
}

// NewTelegram connects to the bot API. An empty token disables reporting.
func NewTelegram(token string, adminID int64) (*Reporter, error) {
	if token == "" || adminID == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return New(bot, adminID), nil
}

func (r *Reporter) Notify(msg string) {
	if r == nil || r.adminID == 0 {
		return
	}
	if _, err := r.bot.Send(tgbotapi.NewMessage(r.adminID, msg)); err != nil {
		slog.Error("failed to send error notification", "err", err)
	}
}

// FeedFailed reports a feed whose run ended without a successful remote write.
func (r *Reporter) FeedFailed(feed, status string, err error) {
	r.Notify(fmt.Sprintf("scrape %s: %s: %v", feed, status, err))
}
