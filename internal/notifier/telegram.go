package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

const (
	telegramAPIBase    = "https://api.telegram.org"
	telegramMaxMessage = 4096
	separator          = "━━━━━━━━━━━━━━━━━━━━━━━\n"
)

type Telegram struct {
	token   string
	chatID  string
	apiBase string
	poster  *poster
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPIBase,
		// Telegram allows roughly one message per second to the same chat.
		poster: newPoster("telegram", 10*time.Second, rate.NewLimiter(rate.Every(time.Second), 1)),
	}
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the batch as one or more HTML messages. Any failed message
// fails the whole batch.
func (t *Telegram) Notify(ctx context.Context, batch models.Batch) error {
	if len(batch.Listings) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	messages := formatTelegram(batch)
	for i, text := range messages {
		body, err := t.poster.postJSON(ctx, endpoint, telegramMessage{
			ChatID:    t.chatID,
			Text:      text,
			ParseMode: "HTML",
		})
		if err != nil {
			return fmt.Errorf("telegram message %d/%d: %w", i+1, len(messages), err)
		}
		var resp telegramResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("telegram response: %w", err)
		}
		if !resp.OK {
			return fmt.Errorf("telegram rejected message: %s", resp.Description)
		}
	}
	slog.Info("Telegram notification sent", "listings", len(batch.Listings), "messages", len(messages))
	return nil
}

// formatTelegram renders the batch and splits it on entry boundaries so no
// message exceeds Telegram's length limit.
func formatTelegram(batch models.Batch) []string {
	header := fmt.Sprintf("🏠 <b>%d new listing(s) in %s</b>\n\n", len(batch.Listings), html.EscapeString(batch.SearchLabel))
	footer := separator + fmt.Sprintf("📊 Total tracked: %d", batch.TotalTracked)

	var messages []string
	var b strings.Builder
	b.WriteString(header)
	for i, l := range batch.Listings {
		entry := formatTelegramEntry(i+1, l)
		if b.Len()+len(entry)+len(footer) > telegramMaxMessage && b.Len() > len(header) {
			messages = append(messages, b.String())
			b.Reset()
		}
		b.WriteString(entry)
	}
	b.WriteString(footer)
	return append(messages, b.String())
}

func formatTelegramEntry(n int, l models.Listing) string {
	var b strings.Builder
	b.WriteString(separator)
	fmt.Fprintf(&b, "<b>#%d: %s</b>\n", n, html.EscapeString(l.DisplayTitle()))
	fmt.Fprintf(&b, "💰 %s\n", html.EscapeString(l.RawPrice))
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(l.Location))
	}
	fmt.Fprintf(&b, "🔗 <a href=\"%s\">View listing</a>\n\n", html.EscapeString(l.URL))
	return b.String()
}
