package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// telegramUpdate mirrors the subset of the bot platform's update object the
// engine needs.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		From      *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// TelegramAdapter handles chat-platform webhook updates.
type TelegramAdapter struct {
	sender Sender
}

var _ Adapter = (*TelegramAdapter)(nil)

// NewTelegramAdapter wires the adapter with an outbound sender.
func NewTelegramAdapter(sender Sender) *TelegramAdapter {
	if sender == nil {
		sender = &LogSender{ChannelName: string(model.ChannelTelegram)}
	}
	return &TelegramAdapter{sender: sender}
}

// Channel implements Adapter.
func (a *TelegramAdapter) Channel() model.Channel {
	return model.ChannelTelegram
}

// Normalize extracts the message from a nested update object. The sender key
// is the user ID; replies address the chat ID.
func (a *TelegramAdapter) Normalize(raw []byte) (*model.InboundMessage, error) {
	var update telegramUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, fmt.Errorf("%w: invalid update JSON: %v", apperrors.ErrMalformedPayload, err)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil, fmt.Errorf("%w: update has no message", apperrors.ErrMalformedPayload)
	}

	return &model.InboundMessage{
		SenderKey:        strconv.FormatInt(update.Message.From.ID, 10),
		Channel:          model.ChannelTelegram,
		Text:             update.Message.Text,
		ChannelMessageID: strconv.FormatInt(update.UpdateID, 10),
		ReplyTo:          strconv.FormatInt(update.Message.Chat.ID, 10),
		ReceivedAt:       utils.Now(),
	}, nil
}

// Ack implements Adapter.
func (a *TelegramAdapter) Ack() (string, string) {
	return "text/plain", "OK"
}

// Send implements Adapter.
func (a *TelegramAdapter) Send(ctx context.Context, destination, text string) error {
	return a.sender.Send(ctx, destination, text)
}
