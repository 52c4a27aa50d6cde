// Package telegram sends scan notifications through the Telegram Bot API.
// Messages use MarkdownV2 and delivery is retried with a linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flooorgang/floorline/internal/models"
)

// maxPicksPerMessage keeps a message under Telegram's 4096 character limit.
const maxPicksPerMessage = 25

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send posts the day's opportunities. Nothing is sent for an empty slate.
func (c *Client) Send(run *models.ScanRun, opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	return c.send(formatOpportunities(run, opps))
}

// SendError reports a failed scan.
func (c *Client) SendError(sport string, err error) error {
	message := fmt.Sprintf("⚠️ *%s scan failed*\n\n`%s`",
		escapeMarkdownV2(strings.ToUpper(sport)), escapeCode(err.Error()))
	return c.send(message)
}

// SendRecovery reports the first successful scan after failures.
func (c *Client) SendRecovery(sport string, failures int) error {
	message := fmt.Sprintf("✅ *%s scan recovered* after %d failed attempt%s",
		escapeMarkdownV2(strings.ToUpper(sport)), failures, plural(failures))
	return c.send(message)
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatOpportunities renders one line per pick, most supported first.
func formatOpportunities(run *models.ScanRun, opps []models.Opportunity) string {
	var b strings.Builder

	sport := "FLOORLINE"
	if run != nil {
		sport = strings.ToUpper(run.Sport)
	}
	fmt.Fprintf(&b, "🎯 *%s value picks* \\(%d\\)\n", escapeMarkdownV2(sport), len(opps))
	if run != nil && !run.ScanDate.IsZero() {
		fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(run.ScanDate.Format("2006-01-02")))
	}
	b.WriteString("\n")

	for i, o := range opps {
		if i == maxPicksPerMessage {
			fmt.Fprintf(&b, "\\.\\.\\. and %d more\n", len(opps)-maxPicksPerMessage)
			break
		}

		reference := "floor"
		if o.Side == models.SideUnder {
			reference = "ceiling"
		}
		line := fmt.Sprintf("%s %s %s %.1f", o.Entity, o.Statistic, o.Side, o.LineValue)
		if o.Odds != nil {
			line += " " + models.FormatOdds(*o.Odds)
		}
		detail := fmt.Sprintf("%s %.0f, avg %.1f, %d/%d games",
			reference, o.ReferenceValue, o.Average, hits(o), o.SampleSize)

		fmt.Fprintf(&b, "%d\\. *%s*\n   %s\n", i+1, escapeMarkdownV2(line), escapeMarkdownV2(detail))
	}
	return b.String()
}

func hits(o models.Opportunity) int {
	return int(o.HitRate*float64(o.SampleSize) + 0.5)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text placed inside a code span.
func escapeCode(text string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`")
	return r.Replace(text)
}
