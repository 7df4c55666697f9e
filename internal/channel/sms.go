package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// SMSAdapter handles Twilio-style form-encoded SMS/WhatsApp webhooks.
type SMSAdapter struct {
	sender Sender
}

var _ Adapter = (*SMSAdapter)(nil)

// NewSMSAdapter wires the adapter with an outbound sender.
func NewSMSAdapter(sender Sender) *SMSAdapter {
	if sender == nil {
		sender = &LogSender{ChannelName: string(model.ChannelSMS)}
	}
	return &SMSAdapter{sender: sender}
}

// Channel implements Adapter.
func (a *SMSAdapter) Channel() model.Channel {
	return model.ChannelSMS
}

// Normalize parses the form-encoded webhook: Body, From and MessageSid are
// all required.
func (a *SMSAdapter) Normalize(raw []byte) (*model.InboundMessage, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid form encoding: %v", apperrors.ErrMalformedPayload, err)
	}

	from := strings.TrimSpace(values.Get("From"))
	body := values.Get("Body")
	sid := strings.TrimSpace(values.Get("MessageSid"))
	if from == "" || sid == "" {
		return nil, fmt.Errorf("%w: missing From or MessageSid", apperrors.ErrMalformedPayload)
	}

	// Twilio prefixes WhatsApp senders with "whatsapp:", the phone number is
	// the stable identity either way
	senderKey := strings.TrimPrefix(from, "whatsapp:")

	return &model.InboundMessage{
		SenderKey:        senderKey,
		Channel:          model.ChannelSMS,
		Text:             body,
		ChannelMessageID: sid,
		ReplyTo:          from,
		ReceivedAt:       utils.Now(),
	}, nil
}

// Ack returns an empty TwiML response; replies go out through the send API.
func (a *SMSAdapter) Ack() (string, string) {
	return "text/xml", "<Response></Response>"
}

// Send implements Adapter.
func (a *SMSAdapter) Send(ctx context.Context, destination, text string) error {
	return a.sender.Send(ctx, destination, text)
}
