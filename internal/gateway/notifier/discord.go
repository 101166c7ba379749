package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"poa/internal/pkg/text"
)

// Discord embed limits.
const (
	discordFieldValueMax = 1024
	discordDescMax       = 4096
)

// Discord posts StructuredMessage as a single embed to a channel webhook.
type Discord struct {
	WebhookURL string
	Client     *http.Client
	Backoff    time.Duration
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{WebhookURL: webhookURL, Client: &http.Client{Timeout: 15 * time.Second}, Backoff: time.Second}
}

type discordPayload struct {
	Content *string        `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (m StructuredMessage) toDiscord() discordPayload {
	embed := discordEmbed{
		Title:       strings.TrimSpace(m.Icon + " " + m.Title),
		Description: text.Truncate(m.Description, discordDescMax),
		Color:       m.Color,
	}
	for _, sec := range m.Sections {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		embed.Fields = append(embed.Fields, discordField{
			Name:  sec.Title,
			Value: text.Truncate(strings.Join(lines, "\n"), discordFieldValueMax),
		})
	}
	if f := strings.TrimSpace(m.Footer); f != "" {
		embed.Footer = &discordFooter{Text: f}
	}
	if !m.Timestamp.IsZero() {
		embed.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return discordPayload{Embeds: []discordEmbed{embed}}
}

func (d *Discord) Notify(ctx context.Context, msg StructuredMessage) error {
	if strings.TrimSpace(d.WebhookURL) == "" {
		return fmt.Errorf("discord webhook url 未配置")
	}
	body, err := json.Marshal(msg.toDiscord())
	if err != nil {
		return err
	}
	return retry(ctx, 3, d.Backoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord status=%d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	})
}
