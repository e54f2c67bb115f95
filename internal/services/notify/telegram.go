package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramNotifier шлёт сообщения через Bot API. Уведомления — побочный
// эффект: отправка best-effort, ошибки только логируются у вызывающего.
type TelegramNotifier struct {
	botToken string
	client   *http.Client
}

func NewTelegramNotifier(botToken string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled — уведомления включены только при заданном токене бота.
func (n *TelegramNotifier) Enabled() bool {
	return n != nil && n.botToken != ""
}

// NotifyReferralReward сообщает рефереру о начисленном бонусе.
// chatID — его же telegram ID (реферальный код совпадает с ним).
func (n *TelegramNotifier) NotifyReferralReward(ctx context.Context, chatID string, points, ton float64) error {
	text := fmt.Sprintf("🎉 Your friend joined the airdrop! You earned <b>+%.0f points</b> and <b>+%.3f TON</b>.", points, ton)
	return n.SendMessage(ctx, chatID, text)
}

func (n *TelegramNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	if !n.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки сообщения в Telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API вернул статус %d", resp.StatusCode)
	}
	return nil
}
