package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/fallback"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/observer"
	"gitlab.com/chathy/api/chathy-command-engine/internal/parser"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/internal/tenant"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// Processor runs the full inbound pipeline for one message: dedupe, tenant
// resolution, parsing, execution or fallback, reply composition and delivery.
// Each message is processed under its own deadline, after the webhook has
// already been acknowledged.
type Processor struct {
	resolver *TenantResolver
	states   storage.StateRepo
	parser   *parser.Parser
	executor *Executor
	bridge   *fallback.Bridge
	audit    *AuditService
	dedupe   *DedupeCache
	composer *channel.Composer
	registry *channel.Registry
	deadline time.Duration
}

// NewProcessor wires the pipeline. bridge may be nil when no conversational
// backend is configured.
func NewProcessor(resolver *TenantResolver, states storage.StateRepo, p *parser.Parser,
	executor *Executor, bridge *fallback.Bridge, audit *AuditService,
	dedupe *DedupeCache, composer *channel.Composer, registry *channel.Registry,
	deadline time.Duration) *Processor {
	return &Processor{
		resolver: resolver,
		states:   states,
		parser:   p,
		executor: executor,
		bridge:   bridge,
		audit:    audit,
		dedupe:   dedupe,
		composer: composer,
		registry: registry,
		deadline: deadline,
	}
}

// Process handles one normalized inbound message end to end and returns the
// reply text that was (or would be) delivered. It never panics: failures of
// any stage resolve to a template reply, so one bad message cannot take down
// a worker.
func (p *Processor) Process(ctx context.Context, msg *model.InboundMessage) (reply string) {
	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	start := utils.Now()
	ch := string(msg.Channel)
	observer.IncMessagesReceived(ch, "")

	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("Panic while processing message",
				zap.String("channel", ch),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			observer.IncMessagesFailed(ch, "")
			reply = p.composer.InternalError()
			// Completes the dedupe reservation so the key does not stay
			// in flight for the rest of the window.
			p.dedupe.Store(msg.Channel, msg.ChannelMessageID, reply)
			p.send(ctx, msg, reply)
		}
	}()

	switch cached, status := p.dedupe.Check(msg.Channel, msg.ChannelMessageID); status {
	case DedupeHit:
		logger.FromContext(ctx).Info("Duplicate message, re-emitting cached reply",
			zap.String("channel", ch),
			zap.String("channel_message_id", msg.ChannelMessageID))
		p.send(ctx, msg, cached)
		return cached
	case DedupeInFlight:
		logger.FromContext(ctx).Info("Duplicate message already in flight, dropping",
			zap.String("channel", ch),
			zap.String("channel_message_id", msg.ChannelMessageID))
		return ""
	}

	reply = p.handle(ctx, msg)

	p.dedupe.Store(msg.Channel, msg.ChannelMessageID, reply)
	p.send(ctx, msg, reply)
	observer.ObserveProcessingDuration(ch, "", utils.Now().Sub(start))
	return reply
}

func (p *Processor) handle(ctx context.Context, msg *model.InboundMessage) string {
	ch := string(msg.Channel)

	profile, err := p.resolver.Resolve(ctx, msg.Channel, msg.SenderKey)
	if err != nil {
		if apperrors.IsUnknownSender(err) {
			logger.FromContext(ctx).Info("Message from unregistered sender",
				zap.String("channel", ch),
				zap.String("sender_key", msg.SenderKey))
			return p.composer.Welcome()
		}
		logger.FromContext(ctx).Error("Tenant resolution failed",
			zap.String("channel", ch), zap.Error(err))
		observer.IncMessagesFailed(ch, "")
		return p.composer.InternalError()
	}

	ctx = tenant.WithTenantID(ctx, profile.ID)
	log := logger.FromContext(ctx).With(zap.String("tenant_id", profile.ID), zap.String("channel", ch))

	serviceNames, err := p.serviceNames(ctx, profile.ID)
	if err != nil {
		log.Error("Reading service names failed", zap.Error(err))
		observer.IncMessagesFailed(ch, profile.ID)
		return p.composer.InternalError()
	}

	cmd := p.parser.Parse(msg.Text, serviceNames)
	log.Info("Parsed inbound message", zap.String("command_kind", string(cmd.Kind)))

	var reply string
	switch cmd.Kind {
	case model.KindClearChat:
		reply = p.clearChat(ctx, profile.ID, ch)
	case model.KindUnrecognized:
		reply = p.fallbackReply(ctx, profile.ID, ch, msg.Text)
	default:
		result, err := p.executor.Execute(ctx, profile.ID, cmd, ch)
		if err != nil {
			log.Error("Command execution failed",
				zap.String("command_kind", string(cmd.Kind)), zap.Error(err))
			p.recordError(ctx, profile.ID, ch, err)
			observer.IncMessagesFailed(ch, profile.ID)
			return p.composer.InternalError()
		}
		observer.IncCommand(string(cmd.Kind), string(result.Outcome), ch)
		reply = result.HumanMessage
	}

	observer.IncMessagesProcessed(ch, profile.ID)
	return reply
}

// fallbackReply hands unmatched text to the conversational backend. The
// interaction is audited either way, with the failure kind as the outcome.
func (p *Processor) fallbackReply(ctx context.Context, tenantID, source, text string) string {
	if p.bridge == nil {
		p.recordFallback(ctx, tenantID, source, "disabled", text)
		return p.composer.FallbackUnavailable()
	}

	answer, err := p.bridge.Ask(ctx, tenantID, text)
	switch {
	case apperrors.IsUnavailable(err):
		logger.FromContext(ctx).Warn("Fallback backend unreachable", zap.Error(err))
		observer.IncFallback("unavailable", tenantID)
		p.recordFallback(ctx, tenantID, source, "unavailable", text)
		return p.composer.FallbackUnavailable()
	case err != nil:
		logger.FromContext(ctx).Warn("Fallback backend returned bad response", zap.Error(err))
		observer.IncFallback("bad_response", tenantID)
		p.recordFallback(ctx, tenantID, source, "bad_response", text)
		return p.composer.FallbackBadResponse()
	}

	observer.IncFallback("ok", tenantID)
	p.recordFallback(ctx, tenantID, source, "ok", text)
	return answer
}

func (p *Processor) clearChat(ctx context.Context, tenantID, source string) string {
	if p.bridge != nil {
		if err := p.bridge.NotifyCleared(ctx, tenantID); err != nil {
			logger.FromContext(ctx).Warn("Failed to notify backend of chat clear", zap.Error(err))
		}
	}
	if _, err := p.audit.Record(ctx, tenantID, string(model.KindClearChat), string(model.OutcomeApplied),
		"Cleared conversation", source, nil); err != nil {
		logger.FromContext(ctx).Error("Failed to record chat clear", zap.Error(err))
	}
	observer.IncCommand(string(model.KindClearChat), string(model.OutcomeApplied), source)
	return p.composer.ChatCleared()
}

func (p *Processor) serviceNames(ctx context.Context, tenantID string) ([]string, error) {
	var names []string
	err := p.states.View(ctx, tenantID, func(state *model.BusinessState) error {
		for _, svc := range state.Services {
			if svc.IsActive {
				names = append(names, svc.Name)
			}
		}
		return nil
	})
	return names, err
}

func (p *Processor) send(ctx context.Context, msg *model.InboundMessage, text string) {
	adapter := p.registry.Get(msg.Channel)
	if adapter == nil {
		logger.FromContext(ctx).Error("No adapter registered for channel",
			zap.String("channel", string(msg.Channel)))
		return
	}
	destination := msg.ReplyTo
	if destination == "" {
		destination = msg.SenderKey
	}
	if err := adapter.Send(ctx, destination, text); err != nil {
		logger.FromContext(ctx).Error("Reply delivery failed",
			zap.String("channel", string(msg.Channel)),
			zap.String("destination", destination),
			zap.Error(err))
	}
}

func (p *Processor) recordFallback(ctx context.Context, tenantID, source, outcome, text string) {
	if _, err := p.audit.Record(ctx, tenantID, model.ActionFallback, outcome,
		"Forwarded message to assistant backend", source,
		map[string]interface{}{"message": text}); err != nil {
		logger.FromContext(ctx).Error("Failed to record fallback interaction", zap.Error(err))
	}
}

func (p *Processor) recordError(ctx context.Context, tenantID, source string, cause error) {
	if _, err := p.audit.Record(ctx, tenantID, model.ActionError, "",
		fmt.Sprintf("Processing failed: %v", cause), source, nil); err != nil {
		logger.FromContext(ctx).Error("Failed to record processing error", zap.Error(err))
	}
}
