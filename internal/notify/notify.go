// Package notify delivers update alerts to a Discord-compatible webhook.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	sendTimeout = 10 * time.Second

	contentLimit     = 800
	descriptionLimit = 2000
)

// Message is one update alert.
type Message struct {
	Title string
	Body  string
	URL   string
}

type embed struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type payload struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds"`
}

// Discord posts messages to a webhook URL. With an empty URL it does nothing.
type Discord struct {
	client  *resty.Client
	webhook string
	now     func() time.Time
}

func NewDiscord(webhook string) *Discord {
	return &Discord{
		client:  resty.New(),
		webhook: webhook,
		now:     time.Now,
	}
}

// Notify sends msg. Delivery failures are logged and never returned.
func (d *Discord) Notify(ctx context.Context, msg Message) {
	if d.webhook == "" {
		slog.Debug("notify: skipped, no webhook configured")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	body := payload{
		Content: "**" + msg.Title + "**\n" + truncate(msg.Body, contentLimit) + "\n\n" + msg.URL,
		Embeds: []embed{{
			Title:       msg.Title,
			URL:         msg.URL,
			Description: truncate(msg.Body, descriptionLimit),
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(d.webhook)
	if err != nil {
		slog.Error("notify: send failed", "error", err)
		return
	}
	if resp.IsError() {
		slog.Error("notify: webhook rejected message", "status", resp.StatusCode())
		return
	}
	slog.Info("notify: notification sent", "title", msg.Title)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
