package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"friendchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// envelope is what travels over the Redis channel between server nodes.
type envelope struct {
	Node  string       `json:"node"`
	Room  string       `json:"room"`
	Event models.Event `json:"event"`
}

// RedisRelay decorates Rooms so that a Publish on one node reaches room members that
// are connected to other nodes. Local members are served first and synchronously;
// the Redis publish happens later from an outbox, so Publish never waits on the network.
type RedisRelay struct {
	local   *Rooms
	rdb     *redis.Client
	channel string
	nodeID  string
	outbox  chan envelope
	log     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

func NewRedisRelay(local *Rooms, rdb *redis.Client, channel, nodeID string, outboxSize int, log *slog.Logger) *RedisRelay {
	return &RedisRelay{
		local:   local,
		rdb:     rdb,
		channel: channel,
		nodeID:  nodeID,
		outbox:  make(chan envelope, outboxSize),
		log:     log,
		ready:   make(chan struct{}),
	}
}

func (r *RedisRelay) Join(c Client, room string)    { r.local.Join(c, room) }
func (r *RedisRelay) Leave(c Client, room string)   { r.local.Leave(c, room) }
func (r *RedisRelay) Members(room string) []Client { return r.local.Members(room) }

func (r *RedisRelay) Publish(room string, event models.Event) {
	r.local.Publish(room, event)

	select {
	case r.outbox <- envelope{Node: r.nodeID, Room: room, Event: event}:
	default:
		r.log.Warn("Relay outbox full, event not forwarded to other nodes", "room", room, "event", event.Type)
	}
}

// PublishLocal delivers to this node's members only.
func (r *RedisRelay) PublishLocal(room string, event models.Event) {
	r.local.Publish(room, event)
}

// Ready is closed once the subscription to the relay channel is confirmed.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run підписується на канал Redis і пересилає події між вузлами, поки ctx не скасовано.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info("Redis relay subscribed", "channel", r.channel, "node_id", r.nodeID)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.receiveLoop(ctx, pubsub.Channel()) })
	g.Go(func() error { return r.sendLoop(ctx) })
	return g.Wait()
}

func (r *RedisRelay) receiveLoop(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Error("Error unmarshalling Redis message", "error", err)
				continue
			}
			if env.Node == r.nodeID {
				continue
			}
			// Повідомлення надійшло від іншого вузла: доставляємо лише локальним клієнтам
			r.local.Publish(env.Room, env.Event)
		}
	}
}

func (r *RedisRelay) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-r.outbox:
			payload, err := json.Marshal(env)
			if err != nil {
				r.log.Error("Error encoding relay envelope", "room", env.Room, "event", env.Event.Type, "error", err)
				continue
			}
			if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
				r.log.Error("Failed to publish to Redis", "room", env.Room, "error", err)
			}
		}
	}
}
