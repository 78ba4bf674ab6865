// Package notify отправляет уведомления в Telegram: сводки групповых заказов
// ресторанам и отмены лобби пользователям.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/lunchorder-system/internal/model"
)

// Telegram отправляет сообщения через Bot API. Доставка best-effort:
// вызывающая сторона логирует ошибку и не повторяет отправку сама.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

// New создаёт нотификатор с ограниченными ретраями на транспортном уровне.
func New(token string, logger *zap.Logger) (*Telegram, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil

	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client.StandardClient())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{bot: bot, logger: logger}, nil
}

// SendGroupOrder отправляет ресторану сводку нового группового заказа.
func (t *Telegram) SendGroupOrder(ctx context.Context, notice model.GroupOrderNotice) error {
	msg := tgbotapi.NewMessage(notice.RestaurantChatID, formatGroupOrder(notice))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send group order: %w", err)
	}

	t.logger.Info("group order sent to restaurant",
		zap.String("groupOrderID", notice.GroupOrderID),
		zap.Int64("chatID", notice.RestaurantChatID))
	return nil
}

// NotifyLobbyCancelled сообщает пользователю, что его бронь лобби отменена.
func (t *Telegram) NotifyLobbyCancelled(ctx context.Context, chatID int64, slotTime string) error {
	msg := tgbotapi.NewMessage(chatID, formatLobbyCancelled(slotTime))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send lobby cancellation: %w", err)
	}
	return nil
}

// Noop используется, когда телеграм-бот не настроен: решения движков
// корректны и без работающего канала уведомлений.
type Noop struct{}

func (Noop) SendGroupOrder(ctx context.Context, notice model.GroupOrderNotice) error { return nil }

func (Noop) NotifyLobbyCancelled(ctx context.Context, chatID int64, slotTime string) error {
	return nil
}
