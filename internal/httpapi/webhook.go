package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/tenant"
	"gitlab.com/chathy/api/chathy-command-engine/internal/usecase"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

const maxWebhookBody = 1 << 20

// handleWebhook builds the endpoint for one channel. The webhook is acked as
// soon as the payload is normalized and queued; processing and reply
// delivery happen on the worker pool.
func (h *Handler) handleWebhook(ch model.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		adapter := h.registry.Get(ch)
		if adapter == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		msg, err := adapter.Normalize(body)
		if err != nil {
			// A malformed payload stays malformed on redelivery, so it is
			// logged and acked instead of bounced back to the channel.
			logger.FromContext(c.Request.Context()).Warn("Dropped malformed webhook payload",
				zap.String("channel", string(ch)),
				zap.Error(err))
			contentType, ack := adapter.Ack()
			c.Data(http.StatusOK, contentType, []byte(ack))
			return
		}
		msg.ReceivedAt = utils.Now()

		// The task context is detached from the request so processing
		// survives the webhook response, but keeps the request ID for
		// correlated logs.
		taskCtx := context.Background()
		if requestID, rerr := tenant.RequestIDFromContext(c.Request.Context()); rerr == nil {
			taskCtx = tenant.WithRequestID(taskCtx, requestID)
		}

		if err := h.worker.Submit(usecase.MessageTask{Ctx: taskCtx, Message: msg}); err != nil {
			if apperrors.IsCapacity(err) {
				// Non-2xx makes the channel redeliver once there is room.
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy, retry later"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue message"})
			return
		}

		contentType, ack := adapter.Ack()
		c.Data(http.StatusOK, contentType, []byte(ack))
	}
}

func (h *Handler) registerWebhookRoutes(r *gin.Engine) {
	r.POST("/webhook/sms", h.handleWebhook(model.ChannelSMS))
	r.POST("/webhook/telegram", h.handleWebhook(model.ChannelTelegram))
	r.POST("/webhook/webchat", h.handleWebhook(model.ChannelWebchat))
}
