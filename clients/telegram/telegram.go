package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/config"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramClient sends ops alerts via the Telegram Bot API.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger     *zap.Logger
	httpClient *http.Client
	botToken   string
	chatID     string
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	if cfg.Telegram.BotToken == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
	} else {
		logger.Info("telegram bot initialized",
			zap.Bool("isProd", cfg.IsProd),
			zap.String("chatID", chatID),
		)
	}

	return &TelegramClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		botToken:   cfg.Telegram.BotToken,
		chatID:     chatID,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendAlert sends a formatted ops alert message.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendAlert(alert notifier.OpsAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	text := tc.buildMessage(alert)
	if err := tc.sendMessage(text); err != nil {
		tc.logger.Error("failed to send telegram alert", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram ops alert",
		zap.String("kind", string(alert.Kind)),
		zap.String("title", alert.Title),
	)
}

func (tc *TelegramClient) buildMessage(alert notifier.OpsAlert) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(alert.Title)))
	if alert.Summary != "" {
		b.WriteString(escapeMarkdown(alert.Summary))
		b.WriteString("\n")
	}
	for _, f := range alert.Fields {
		b.WriteString(fmt.Sprintf("%s: `%s`\n", escapeMarkdown(f.Name), escapeMarkdown(f.Value)))
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(fmt.Sprintf("_%s_", ts.UTC().Format("2006-01-02 15:04:05 UTC")))

	return b.String()
}

func (tc *TelegramClient) sendMessage(text string) error {
	reqBody := sendMessageRequest{
		ChatID:    tc.chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, tc.botToken)
	resp, err := tc.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telegram api returned status=%d", resp.StatusCode)
	}

	return nil
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Close is a no-op; the Telegram client holds no persistent connection.
func (tc *TelegramClient) Close() error {
	return nil
}
