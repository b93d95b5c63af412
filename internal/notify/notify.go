// Package notify posts run summaries to a Mattermost-compatible incoming
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/config"
)

// Attachment is a message attachment block.
type Attachment struct {
	Pretext string `json:"pretext,omitempty"`
	Text    string `json:"text"`
}

// Message is the webhook payload.
type Message struct {
	Text        string       `json:"text"`
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Sender delivers a run summary.
type Sender interface {
	Send(ctx context.Context, text string, attachments []Attachment, tags ...string) error
}

var _ Sender = (*Notifier)(nil)

// Notifier delivers messages to the configured webhook. Without a webhook
// URL every call is a no-op.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
	now    func() time.Time
}

// New creates a Notifier.
func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.cfg.WebhookURL != ""
}

// Send posts text with optional attachments and tags. The text is prefixed
// with the send time and followed by the tags as #hashtags.
func (n *Notifier) Send(ctx context.Context, text string, attachments []Attachment, tags ...string) error {
	if !n.Enabled() {
		return nil
	}
	msg := Message{
		Text:        n.format(text, tags),
		Channel:     n.cfg.Channel,
		Username:    n.cfg.Username,
		Attachments: attachments,
	}
	if err := n.post(ctx, msg); err != nil {
		zap.L().Error("notify: failed to send message", zap.Error(err))
		return err
	}
	zap.L().Debug("notify: message sent", zap.Strings("tags", tags))
	return nil
}

func (n *Notifier) format(text string, tags []string) string {
	s := n.now().Format("02/01/2006 à 15:04:05") + ": " + text
	if len(tags) == 0 {
		return s
	}
	hashed := make([]string, len(tags))
	for i, t := range tags {
		hashed[i] = "#" + t
	}
	return s + "\n" + strings.Join(hashed, " ")
}

// ErrorsAttachment lists errors under "Détail des erreurs", or states that
// none occurred.
func ErrorsAttachment(errs []string) Attachment {
	text := "Aucune erreur rencontrée"
	if len(errs) > 0 {
		text = BulletList(errs)
	}
	return Attachment{Pretext: "Détail des erreurs", Text: text}
}

// BulletList renders items as "- item" lines.
func BulletList(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s", it)
	}
	return b.String()
}

func (n *Notifier) post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
