package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

const (
	colorListing     = 3447003 // #3498DB
	maxEmbedsPerPost = 10
)

type Discord struct {
	webhookURL string
	poster     *poster
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		// Webhooks are limited to 5 requests per 2 seconds.
		poster: newPoster("discord", 10*time.Second, rate.NewLimiter(rate.Every(400*time.Millisecond), 1)),
	}
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title     string              `json:"title,omitempty"`
	URL       string              `json:"url,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
	Color     int                 `json:"color,omitempty"`
	Fields    []discordEmbedField `json:"fields,omitempty"`
	Footer    *discordEmbedFooter `json:"footer,omitempty"`
}

// Notify posts the batch as webhook messages of up to 10 embeds each.
func (d *Discord) Notify(ctx context.Context, batch models.Batch) error {
	if len(batch.Listings) == 0 {
		return nil
	}

	embeds := make([]discordEmbed, 0, len(batch.Listings))
	for _, l := range batch.Listings {
		embeds = append(embeds, formatListingToEmbed(l))
	}

	for start := 0; start < len(embeds); start += maxEmbedsPerPost {
		end := min(start+maxEmbedsPerPost, len(embeds))
		payload := discordWebhookPayload{Embeds: embeds[start:end]}
		if start == 0 {
			payload.Content = fmt.Sprintf("🏠 **%d new listing(s) in %s**", len(batch.Listings), batch.SearchLabel)
		}
		if end == len(embeds) {
			last := &payload.Embeds[len(payload.Embeds)-1]
			last.Footer = &discordEmbedFooter{Text: fmt.Sprintf("Total tracked: %d", batch.TotalTracked)}
		}
		if _, err := d.poster.postJSON(ctx, d.webhookURL, payload); err != nil {
			return fmt.Errorf("discord embeds %d-%d: %w", start+1, end, err)
		}
	}
	slog.Info("Discord notification sent", "listings", len(batch.Listings))
	return nil
}

func formatListingToEmbed(l models.Listing) discordEmbed {
	fields := []discordEmbedField{{Name: "Price", Value: orDash(l.RawPrice), Inline: true}}
	if l.Location != "" {
		fields = append(fields, discordEmbedField{Name: "Location", Value: l.Location, Inline: true})
	}

	var ts string
	if !l.DiscoveredAt.IsZero() {
		ts = l.DiscoveredAt.Format(time.RFC3339)
	}

	return discordEmbed{
		Title:     l.DisplayTitle(),
		URL:       l.URL,
		Timestamp: ts,
		Color:     colorListing,
		Fields:    fields,
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
