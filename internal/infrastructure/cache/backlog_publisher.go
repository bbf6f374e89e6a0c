package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/port"
)

// DefaultBacklogChannel is the pub/sub channel clients subscribe to.
const DefaultBacklogChannel = "approval:backlog"

// BacklogPublisher implements port.BacklogPublisher on Redis pub/sub.
// With a nil client every signal is logged and dropped.
type BacklogPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewBacklogPublisher creates a publisher on channel
func NewBacklogPublisher(client *redis.Client, channel string, logger *zap.Logger) *BacklogPublisher {
	if channel == "" {
		channel = DefaultBacklogChannel
	}
	return &BacklogPublisher{client: client, channel: channel, logger: logger}
}

func (p *BacklogPublisher) PublishBacklog(ctx context.Context, signal port.BacklogSignal) error {
	if p.client == nil {
		p.logger.Debug("Backlog signal dropped, Redis not configured",
			zap.String("userid", signal.UserID),
			zap.Int("total", signal.Total))
		return nil
	}

	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal backlog signal: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish backlog signal: %w", err)
	}

	p.logger.Debug("Backlog signal published",
		zap.String("channel", p.channel),
		zap.String("userid", signal.UserID),
		zap.Int64("proc_inst_id", signal.ProcInstID),
		zap.Int("total", signal.Total),
		zap.Int64("receivers", receivers))
	return nil
}
