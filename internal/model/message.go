package model

import (
	"time"
)

// Channel identifies the messaging transport an inbound message arrived on.
type Channel string

const (
	// ChannelSMS is the Twilio-style SMS/WhatsApp transport (form-encoded webhooks).
	ChannelSMS Channel = "sms"
	// ChannelTelegram is the chat-bot platform transport (nested update objects).
	ChannelTelegram Channel = "telegram"
	// ChannelWebchat is the embedded web widget transport (plain JSON).
	ChannelWebchat Channel = "webchat"
)

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelTelegram, ChannelWebchat:
		return true
	}
	return false
}

// InboundMessage is the canonical form of a webhook message, immutable once
// created. It lives for one processing pass and is never persisted.
type InboundMessage struct {
	// SenderKey is the channel-specific sender identifier (phone number,
	// chat user ID, widget session ID) used for tenant resolution.
	SenderKey string `json:"sender_key" validate:"required"`
	// Channel is the transport the message arrived on.
	Channel Channel `json:"channel" validate:"required"`
	// Text is the raw message body.
	Text string `json:"text"`
	// ChannelMessageID is the channel-native message identifier used for dedupe.
	ChannelMessageID string `json:"channel_message_id" validate:"required"`
	// ReplyTo is the channel-native destination for the outbound reply.
	// Usually the sender key, but chat platforms address replies to the chat.
	ReplyTo string `json:"reply_to"`
	// ReceivedAt is when the webhook was accepted, UTC.
	ReceivedAt time.Time `json:"received_at"`
}
