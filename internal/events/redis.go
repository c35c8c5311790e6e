package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"unichatclient/internal/redis"
)

const (
	// RedisChannel is the pub/sub channel conversation events are published on.
	RedisChannel = "conversation:events"

	redisPublishTimeout = 2 * time.Second
	redisQueueSize      = 256
)

// RedisPublisher broadcasts events to out-of-process observers over redis pub/sub.
// Publish only queues; one goroutine does the network writes in order.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	send    func(ctx context.Context, payload []byte) error

	queue   chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	r := &RedisPublisher{client: client, channel: RedisChannel}
	r.send = func(ctx context.Context, payload []byte) error {
		return r.client.Publish(ctx, r.channel, payload)
	}
	r.start(redisQueueSize)
	return r
}

func (r *RedisPublisher) start(size int) {
	r.queue = make(chan Event, size)
	r.done = make(chan struct{})
	r.stopped = make(chan struct{})
	go r.drain()
}

// Publish never blocks; events are dropped and logged when the queue is full.
func (r *RedisPublisher) Publish(ev Event) {
	if r == nil || r.queue == nil {
		return
	}
	select {
	case r.queue <- ev:
	case <-r.done:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("events: redis queue full, dropping event")
	}
}

// Close stops the drain goroutine after the queued events are written.
func (r *RedisPublisher) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() { close(r.done) })
	<-r.stopped
}

func (r *RedisPublisher) drain() {
	defer close(r.stopped)
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-r.done:
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *RedisPublisher) write(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("events: marshal event for redis failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := r.send(ctx, payload); err != nil {
		log.Warn().Err(err).Str("channel", r.channel).Msg("events: redis publish failed")
	}
}

// Listen delivers events published on the channel to handler until ctx is done.
func (r *RedisPublisher) Listen(ctx context.Context, handler func(Event)) error {
	pubsub, err := r.client.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer pubsub.Close()
	// wait for the subscription to be confirmed before returning messages
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
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
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("events: decode redis event failed")
				continue
			}
			handler(ev)
		}
	}
}
