package telegram

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"brain-orchestrator/internal/domain/ports/adapter"
)

// Telegram caps one message at 4096 characters.
const maxTelegramMessage = 4096

var _ adapter.Deliverer = (*RealBotDeliverer)(nil)

// RealBotDeliverer is the send-only transport for completed-job output. The
// conversational front door lives in another service; this process only
// pushes results back.
type RealBotDeliverer struct {
	bot *tgbotapi.BotAPI
}

func NewRealBotDeliverer(token string) (*RealBotDeliverer, error) {
	if token == "" {
		return nil, errors.New("telegram token empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &RealBotDeliverer{bot: bot}, nil
}

func (r *RealBotDeliverer) Source() string      { return "telegram" }
func (r *RealBotDeliverer) MaxMessageSize() int { return maxTelegramMessage }

func (r *RealBotDeliverer) Deliver(ctx context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return errors.New("telegram deliverer: user id is not a chat id")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	_, err = r.bot.Send(msg)
	return err
}
