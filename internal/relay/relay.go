package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channel = "rooms:updates"

// UpdateEvent is the wire form of an accepted update shipped between service
// instances over Redis pub/sub.
type UpdateEvent struct {
	InstanceID string          `json:"instanceId"`
	RoomID     string          `json:"roomId"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Relay fans accepted updates out to other instances of the service. Each
// instance tags its events with a unique ID and ignores its own, so a room
// split across instances still converges on the latest write.
type Relay struct {
	rdb        *redis.Client
	instanceID string
	log        *zap.Logger
	apply      func(roomID string, payload []byte)
	cancel     context.CancelFunc
}

func New(rdb *redis.Client, log *zap.Logger, apply func(roomID string, payload []byte)) *Relay {
	return &Relay{
		rdb:        rdb,
		instanceID: uuid.New().String(),
		log:        log,
		apply:      apply,
	}
}

func (r *Relay) InstanceID() string { return r.instanceID }

// Publish ships an accepted update to peer instances.
func (r *Relay) Publish(roomID string, payload []byte) error {
	event := UpdateEvent{
		InstanceID: r.instanceID,
		RoomID:     roomID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal relay event: %w", err)
	}
	return r.rdb.Publish(context.Background(), channel, data).Err()
}

// Start subscribes to peer updates until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.subscribe(ctx)
}

func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Relay) subscribe(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	r.log.Info("subscribed to room updates", zap.String("instance", r.instanceID))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopping room update subscriber", zap.String("instance", r.instanceID))
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event UpdateEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Warn("failed to unmarshal relay event", zap.Error(err))
				continue
			}
			if event.InstanceID == r.instanceID {
				continue
			}
			r.apply(event.RoomID, event.Payload)
		}
	}
}
