package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/perftrack/internal/core"
	"github.com/newthinker/perftrack/internal/notifier"
)

const defaultBaseURL = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token := cfg.StringParam("bot_token"); token != "" {
		t.botToken = token
	}
	if chatID := cfg.StringParam("chat_id"); chatID != "" {
		t.chatID = chatID
	}
	if baseURL := cfg.StringParam("base_url"); baseURL != "" {
		t.baseURL = baseURL
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.baseURL == "" {
		t.baseURL = defaultBaseURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

// Notify sends one message listing every event of the run.
func (t *Telegram) Notify(ctx context.Context, events []notifier.Event) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *%d trade updates*\n\n", len(events)))

	for i, ev := range events {
		sb.WriteString(formatEvent(ev))
		if i < len(events)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return t.sendMessage(ctx, sb.String())
}

func formatEvent(ev notifier.Event) string {
	var sb strings.Builder
	sig := ev.Signal

	emoji := "🟢"
	switch {
	case ev.Closed() && ev.R > 0:
		emoji = "✅"
	case ev.Closed() && ev.R < 0:
		emoji = "🛑"
	case ev.Closed():
		emoji = "⏸️"
	}

	sb.WriteString(fmt.Sprintf("%s *%s* %s -> %s\n", emoji, sig.Ticker, ev.From, sig.Status()))
	sb.WriteString(fmt.Sprintf("🎯 Group: `%s`\n", sig.Group().Key()))

	if sig.Execution.EntryPrice > 0 {
		sb.WriteString(fmt.Sprintf("💰 Entry: %.4f on %s\n", sig.Execution.EntryPrice, sig.Execution.EntryDate))
	}
	if ev.Closed() {
		sb.WriteString(fmt.Sprintf("🚪 Exit: %.4f on %s (%s)\n", sig.Execution.ExitPrice, sig.Execution.ExitDate, exitLabel(sig.Execution.ExitReason)))
		sb.WriteString(fmt.Sprintf("📈 Result: %+.2f%% / %+.2fR", ev.PerfPct, ev.R))
	} else {
		sb.WriteString(fmt.Sprintf("🛡 Stop: %.4f", sig.InitialData.StopLoss))
	}

	return sb.String()
}

func exitLabel(reason core.ExitReason) string {
	switch reason {
	case core.ExitStopLoss:
		return "stop loss"
	case core.ExitBreakeven:
		return "breakeven"
	case core.ExitTime:
		return "time stop"
	default:
		return string(reason)
	}
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
