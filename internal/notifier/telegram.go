package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"dcabot/internal/config"
	"dcabot/internal/exchange"
	"dcabot/pkg/retry"
	"dcabot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender отправляет сообщения оператору через Bot API
type TelegramSender struct {
	cfg  config.TelegramConfig
	http *exchange.HTTPClient
	log  *utils.Logger
}

// NewTelegramSender создает отправитель. При выключенном Telegram
// Send превращается в no-op.
func NewTelegramSender(cfg config.TelegramConfig, log *utils.Logger) *TelegramSender {
	if log == nil {
		log = utils.L()
	}
	return &TelegramSender{
		cfg:  cfg,
		http: exchange.GetGlobalHTTPClient(),
		log:  log.WithComponent("telegram"),
	}
}

// Enabled сообщает, настроена ли отправка
func (t *TelegramSender) Enabled() bool {
	return t.cfg.Enabled && t.cfg.Token != "" && t.cfg.ChatID != ""
}

// Send отправляет текстовое сообщение в настроенный чат.
// Сетевые сбои повторяются с backoff, ошибка после повторов не фатальна
// для вызывающего: журнал в БД остается первичным.
func (t *TelegramSender) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.cfg.Token)

	return retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, body)
		}
		return nil
	}, retry.NetworkConfig())
}
