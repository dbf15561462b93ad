package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/rental-watch-bot/internal/config"
	"github.com/pauljones0/rental-watch-bot/internal/models"
)

func intPtr(n int) *int { return &n }

func testBatch(n int) models.Batch {
	listings := make([]models.Listing, 0, n)
	for i := 1; i <= n; i++ {
		listings = append(listings, models.Listing{
			URL:          fmt.Sprintf("https://www.pararius.com/apartment-for-rent/utrecht/%d/street", i),
			Title:        fmt.Sprintf("Flat <%d> & co", i),
			RawPrice:     "€1,250 per month",
			ParsedPrice:  intPtr(1250),
			Location:     "Utrecht",
			DiscoveredAt: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		})
	}
	return models.Batch{Listings: listings, TotalTracked: 40 + n, SearchLabel: "Utrecht"}
}

// fastPoster removes throttling and backoff delays for tests.
func fastPoster(p *poster) {
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	p.retryBase = time.Millisecond
}

func TestTelegram_Notify(t *testing.T) {
	var got telegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/bot123:abc/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer server.Close()

	tg := NewTelegram("123:abc", "42")
	tg.apiBase = server.URL
	fastPoster(tg.poster)

	if err := tg.Notify(context.Background(), testBatch(2)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if got.ChatID != "42" || got.ParseMode != "HTML" {
		t.Errorf("unexpected message envelope %+v", got)
	}
	for _, want := range []string{
		"<b>2 new listing(s) in Utrecht</b>",
		"<b>#1: Flat &lt;1&gt; &amp; co</b>",
		"💰 €1,250 per month",
		`<a href="https://www.pararius.com/apartment-for-rent/utrecht/2/street">View listing</a>`,
		"📊 Total tracked: 42",
	} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("message missing %q:\n%s", want, got.Text)
		}
	}
}

func TestTelegram_NotOKFailsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	tg := NewTelegram("t", "c")
	tg.apiBase = server.URL
	fastPoster(tg.poster)

	err := tg.Notify(context.Background(), testBatch(1))
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected rejection error, got %v", err)
	}
}

func TestTelegram_EmptyBatchIsNoop(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	tg := NewTelegram("t", "c")
	tg.apiBase = server.URL
	if err := tg.Notify(context.Background(), models.Batch{}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no requests, got %d", calls)
	}
}

func TestFormatTelegram_SplitsLongBatches(t *testing.T) {
	messages := formatTelegram(testBatch(60))
	if len(messages) < 2 {
		t.Fatalf("expected the batch to be split, got %d message(s)", len(messages))
	}
	for i, m := range messages {
		if len(m) > telegramMaxMessage {
			t.Errorf("message %d is %d bytes", i, len(m))
		}
	}
	if !strings.Contains(messages[len(messages)-1], "Total tracked: 100") {
		t.Error("footer should be on the last message")
	}
	all := strings.Join(messages, "")
	if !strings.Contains(all, "#1:") || !strings.Contains(all, "#60:") {
		t.Error("every entry should appear exactly once across messages")
	}
}

func TestDiscord_NotifyChunksEmbeds(t *testing.T) {
	var payloads []discordWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p discordWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		payloads = append(payloads, p)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscord(server.URL)
	fastPoster(d.poster)

	if err := d.Notify(context.Background(), testBatch(12)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("expected 2 webhook posts, got %d", len(payloads))
	}
	if len(payloads[0].Embeds) != 10 || len(payloads[1].Embeds) != 2 {
		t.Errorf("embed counts = %d, %d", len(payloads[0].Embeds), len(payloads[1].Embeds))
	}
	if !strings.Contains(payloads[0].Content, "12 new listing(s) in Utrecht") {
		t.Errorf("content = %q", payloads[0].Content)
	}
	last := payloads[1].Embeds[1]
	if last.Footer == nil || last.Footer.Text != "Total tracked: 52" {
		t.Errorf("footer = %+v", last.Footer)
	}
}

func TestFormatListingToEmbed(t *testing.T) {
	l := testBatch(1).Listings[0]
	l.CleanTitle = "Bright flat near Oudegracht"
	embed := formatListingToEmbed(l)

	if embed.Title != "Bright flat near Oudegracht" {
		t.Errorf("Title = %q", embed.Title)
	}
	if embed.URL != l.URL {
		t.Errorf("URL = %q", embed.URL)
	}
	if len(embed.Fields) != 2 || embed.Fields[0].Value != "€1,250 per month" || embed.Fields[1].Value != "Utrecht" {
		t.Errorf("Fields = %+v", embed.Fields)
	}
	if embed.Timestamp != "2026-10-16T12:00:00Z" {
		t.Errorf("Timestamp = %q", embed.Timestamp)
	}
}

func TestPoster_RetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscord(server.URL)
	fastPoster(d.poster)

	if err := d.Notify(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestPoster_ServerErrorsExhaustRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewDiscord(server.URL)
	fastPoster(d.poster)

	err := d.Notify(context.Background(), testBatch(1))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if calls != defaultMaxRetries+1 {
		t.Errorf("expected %d calls, got %d", defaultMaxRetries+1, calls)
	}
}

func TestPoster_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid Form Body"}`))
	}))
	defer server.Close()

	d := NewDiscord(server.URL)
	fastPoster(d.poster)

	err := d.Notify(context.Background(), testBatch(1))
	if err == nil || !strings.Contains(err.Error(), "Invalid Form Body") {
		t.Errorf("expected error with response body, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPoster_RetryDelay(t *testing.T) {
	p := &poster{retryBase: 100 * time.Millisecond}
	tests := []struct {
		header  string
		attempt int
		want    time.Duration
	}{
		{"", 0, 100 * time.Millisecond},
		{"", 2, 400 * time.Millisecond},
		{"1.5", 0, 1500 * time.Millisecond},
		{"3600", 0, maxRetryAfter},
		{"soon", 1, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		resp := &http.Response{Header: http.Header{}}
		if tt.header != "" {
			resp.Header.Set("Retry-After", tt.header)
		}
		if got := p.retryDelay(resp, tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%q, %d) = %s, want %s", tt.header, tt.attempt, got, tt.want)
		}
	}
}

func TestBuildEmail(t *testing.T) {
	msg := string(buildEmail("bot@example.com", "me@example.com", testBatch(2), time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)))

	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: me@example.com\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		`<a href="https://www.pararius.com/apartment-for-rent/utrecht/1/street">Flat &lt;1&gt; &amp; co</a>`,
		"<p>Total tracked: 42</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("email missing %q", want)
		}
	}
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Error("subject should be Q-encoded")
	}
}

func TestEmailSubject(t *testing.T) {
	if got := emailSubject(testBatch(1)); got != "🏠 1 new listing in Utrecht" {
		t.Errorf("subject = %q", got)
	}
	if got := emailSubject(testBatch(3)); got != "🏠 3 new listings in Utrecht" {
		t.Errorf("subject = %q", got)
	}
}

func TestEmail_DialFailure(t *testing.T) {
	// Nothing listens on port 1 of the loopback address.
	e := NewEmail("127.0.0.1", 1, "bot@example.com", "", "me@example.com")
	e.timeout = time.Second
	if err := e.Notify(context.Background(), testBatch(1)); err == nil {
		t.Error("expected dial error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		notifier string
		wantType string
		wantErr  bool
	}{
		{"telegram", "*notifier.Telegram", false},
		{"discord", "*notifier.Discord", false},
		{"email", "*notifier.Email", false},
		{"pigeon", "", true},
	}
	for _, tt := range tests {
		n, err := New(&config.Config{Notifier: tt.notifier, SMTPPort: 465})
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%s) error = %v", tt.notifier, err)
			continue
		}
		if !tt.wantErr && fmt.Sprintf("%T", n) != tt.wantType {
			t.Errorf("New(%s) = %T, want %s", tt.notifier, n, tt.wantType)
		}
	}
}
