// Package slack posts scan status to a Slack incoming webhook.
package slack

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// maxDetailLen bounds error detail so the payload stays under Slack's
// section text limit.
const maxDetailLen = 2000

// Notifier sends status messages via webhook
type Notifier struct {
	webhookURL string
	client     *resty.Client
	location   *time.Location
	now        func() time.Time
}

// NewNotifier creates a new Slack notifier. Timestamps are shown in location.
func NewNotifier(webhookURL string, location *time.Location) *Notifier {
	if location == nil {
		location = time.Local
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(10 * time.Second),
		location:   location,
		now:        time.Now,
	}
}

// ScanSucceeded reports a completed scan.
func (n *Notifier) ScanSucceeded(ctx context.Context, sport string, picks int) error {
	message := fmt.Sprintf("%s scanner completed successfully!\n\n*Picks generated:* %d", sport, picks)
	return n.post(ctx, "Scanner Success", message, false)
}

// ScanFailed reports a failed scan with the error as detail.
func (n *Notifier) ScanFailed(ctx context.Context, sport string, err error) error {
	message := fmt.Sprintf("%s scanner failed with error:\n\n```%s```", sport, truncate(err.Error()))
	return n.post(ctx, "Scanner Failed", message, true)
}

// ResultsScored reports a grading pass.
func (n *Notifier) ResultsScored(ctx context.Context, date time.Time, hits, misses int) error {
	message := fmt.Sprintf("Results tracker completed successfully!\n\n*Date:* %s\n*Picks scored:* %d (%d hit, %d miss)",
		date.Format("2006-01-02"), hits+misses, hits, misses)
	return n.post(ctx, "Results Tracker Success", message, false)
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

type payload struct {
	Blocks []block `json:"blocks"`
}

func (n *Notifier) post(ctx context.Context, title, message string, isError bool) error {
	emoji := "✅"
	if isError {
		emoji = "🚨"
	}
	timestamp := n.now().In(n.location).Format("2006-01-02 03:04 PM MST")

	body := payload{Blocks: []block{
		{Type: "header", Text: &textObject{Type: "plain_text", Text: emoji + " " + title}},
		{Type: "section", Text: &textObject{Type: "mrkdwn", Text: message}},
		{Type: "context", Elements: []textObject{{Type: "mrkdwn", Text: "⏰ " + timestamp}}},
	}}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// truncate keeps the tail of long text, where the root cause usually is.
func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	start := len(s) - maxDetailLen
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:] + "\n... (truncated)"
}
