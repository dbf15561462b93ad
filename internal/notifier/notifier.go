package notifier

import (
	"context"
	"fmt"

	"github.com/pauljones0/rental-watch-bot/internal/config"
	"github.com/pauljones0/rental-watch-bot/internal/models"
)

// Notifier delivers a batch of new listings to one channel.
type Notifier interface {
	Notify(ctx context.Context, batch models.Batch) error
}

// New returns the notifier selected by NOTIFIER.
func New(cfg *config.Config) (Notifier, error) {
	switch cfg.Notifier {
	case "telegram":
		return NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID), nil
	case "discord":
		return NewDiscord(cfg.DiscordWebhookURL), nil
	case "email":
		return NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.EmailPassword, cfg.ReceiverEmail), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}
