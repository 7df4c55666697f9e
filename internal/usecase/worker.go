package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/config"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/tenant"
)

// MessageTask holds one normalized message queued for async processing.
type MessageTask struct {
	// Ctx carries the request ID, detached from the webhook request's
	// lifetime so cancellation of the HTTP request does not abort processing.
	Ctx     context.Context
	Message *model.InboundMessage
}

// IMessageWorker is the submission surface of the processing pool.
type IMessageWorker interface {
	Submit(task MessageTask) error
	Stop()
}

// MessageWorker runs the processing pipeline on a bounded goroutine pool so
// webhook handlers can acknowledge immediately and stay fast under load.
type MessageWorker struct {
	pool       *ants.PoolWithFunc
	processor  *Processor
	baseLogger *zap.Logger
}

var _ IMessageWorker = (*MessageWorker)(nil)

// NewMessageWorker creates and starts the processing pool.
func NewMessageWorker(cfg config.WorkerPoolConfig, processor *Processor, baseLogger *zap.Logger) (*MessageWorker, error) {
	worker := &MessageWorker{
		processor:  processor,
		baseLogger: baseLogger.Named("message_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(MessageTask)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processor.Process(task.Ctx, task.Message)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(true),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(r interface{}) {
			worker.baseLogger.Error("Panic recovered in message worker",
				zap.Any("panic_error", r), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Message worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return worker, nil
}

// Submit queues one message for processing. Returns ErrCapacity when the
// pool is saturated; webhook handlers turn that into an error status so the
// channel redelivers later.
func (w *MessageWorker) Submit(task MessageTask) error {
	if err := w.pool.Invoke(task); err != nil {
		w.baseLogger.Warn("Failed to submit message task to pool",
			zap.String("channel", string(task.Message.Channel)),
			zap.String("channel_message_id", task.Message.ChannelMessageID),
			zap.Error(err),
		)
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("%w: message pool overloaded", apperrors.ErrCapacity)
		}
		return fmt.Errorf("failed to invoke message task: %w", err)
	}

	requestID, _ := tenant.RequestIDFromContext(task.Ctx)
	w.baseLogger.Debug("Submitted message task",
		zap.String("channel", string(task.Message.Channel)),
		zap.String("request_id", requestID),
	)
	return nil
}

// Stop releases the pool, waiting for in-flight tasks to finish.
func (w *MessageWorker) Stop() {
	w.pool.Release()
	w.baseLogger.Info("Message worker pool stopped")
}
