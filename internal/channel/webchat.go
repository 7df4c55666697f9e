package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// webchatPayload is the embedded widget's plain JSON body.
type webchatPayload struct {
	Token     string `json:"token"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// WebchatAdapter handles the embedded web widget channel.
type WebchatAdapter struct {
	sender Sender
}

var _ Adapter = (*WebchatAdapter)(nil)

// NewWebchatAdapter wires the adapter with an outbound sender.
func NewWebchatAdapter(sender Sender) *WebchatAdapter {
	if sender == nil {
		sender = &LogSender{ChannelName: string(model.ChannelWebchat)}
	}
	return &WebchatAdapter{sender: sender}
}

// Channel implements Adapter.
func (a *WebchatAdapter) Channel() model.Channel {
	return model.ChannelWebchat
}

// Normalize parses the widget JSON; token and message_id are required.
func (a *WebchatAdapter) Normalize(raw []byte) (*model.InboundMessage, error) {
	var payload webchatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid widget JSON: %v", apperrors.ErrMalformedPayload, err)
	}
	if payload.Token == "" || payload.MessageID == "" {
		return nil, fmt.Errorf("%w: missing token or message_id", apperrors.ErrMalformedPayload)
	}

	return &model.InboundMessage{
		SenderKey:        payload.Token,
		Channel:          model.ChannelWebchat,
		Text:             payload.Message,
		ChannelMessageID: payload.MessageID,
		ReplyTo:          payload.Token,
		ReceivedAt:       utils.Now(),
	}, nil
}

// Ack implements Adapter.
func (a *WebchatAdapter) Ack() (string, string) {
	return "application/json", `{"status":"ok"}`
}

// Send implements Adapter.
func (a *WebchatAdapter) Send(ctx context.Context, destination, text string) error {
	return a.sender.Send(ctx, destination, text)
}
