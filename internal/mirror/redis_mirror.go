package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codenow/internal/metrics"
	"codenow/internal/models"
	"codenow/internal/utils"
)

const queueSize = 256

// RedisMirror publishes session presence events to a Redis channel so that
// dashboards or other instances can follow occupancy. It only observes; nothing
// read from Redis is fed back into the session.
type RedisMirror struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	queue      chan models.PresenceEvent
	log        *zap.Logger
}

func NewRedisMirror(rdb *redis.Client, channel string, log *zap.Logger) *RedisMirror {
	return &RedisMirror{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.New().String(),
		queue:      make(chan models.PresenceEvent, queueSize),
		log:        utils.OrNop(log),
	}
}

// GetInstanceID returns the id stamped on every event from this process.
func (m *RedisMirror) GetInstanceID() string {
	return m.instanceID
}

// Publish enqueues without blocking; the session calls it under its lock.
func (m *RedisMirror) Publish(event models.PresenceEvent) {
	event.InstanceID = m.instanceID
	select {
	case m.queue <- event:
	default:
		metrics.MirrorDropped()
	}
}

// Run drains the queue until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.queue:
			if err := m.publish(ctx, event); err != nil {
				metrics.MirrorDropped()
				m.log.Warn("presence publish failed", zap.String("type", event.Type), zap.Error(err))
			}
		}
	}
}

func (m *RedisMirror) publish(ctx context.Context, event models.PresenceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}
	return m.rdb.Publish(ctx, m.channel, data).Err()
}

// Watch delivers presence events published by other instances until ctx is
// cancelled. Events from this instance are skipped.
func (m *RedisMirror) Watch(ctx context.Context, handle func(models.PresenceEvent)) error {
	pubsub := m.rdb.Subscribe(ctx, m.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reading
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.channel, err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				m.log.Warn("failed to unmarshal presence event", zap.Error(err))
				continue
			}
			if event.InstanceID == m.instanceID {
				continue
			}
			handle(event)
		}
	}
}
