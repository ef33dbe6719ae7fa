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

	"updown/internal/logger"
	"updown/internal/pkg/retry"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram 把预测结果推送到指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	Retry    retry.Options
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramAPI,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Retry:    retry.Options{MaxAttempts: 3, BackoffBase: time.Second},
	}
}

// SendText 发送 Markdown 文本（最多 3 次，指数退避）。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(t.BotToken) == "" || strings.TrimSpace(t.ChatID) == "" {
		return fmt.Errorf("telegram config incomplete")
	}
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = defaultTelegramAPI
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}
	opts := t.Retry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warnf("telegram send attempt %d failed: %v (retry in %s)", attempt, err, delay)
	}
	return retry.Do(ctx, opts, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("telegram status=%d", resp.StatusCode)
		}
		return nil
	})
}
