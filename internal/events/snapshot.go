package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"unichatclient/internal/models"
	"unichatclient/internal/redis"
)

const (
	// SnapshotKey holds the latest transcript so late observers can catch up.
	SnapshotKey = "conversation:snapshot"
	snapshotTTL = 30 * time.Minute
)

// SnapshotMirror keeps a copy of the current transcript in redis. Every
// event marks the mirror dirty; one goroutine writes the latest snapshot, so
// bursts of events collapse into a single write. Nothing ever reads the copy
// back into a store.
type SnapshotMirror struct {
	client *redis.Client
	write  func(ctx context.Context, data []byte) error

	mu     sync.Mutex
	source func() models.Conversation

	dirty   chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewSnapshotMirror(client *redis.Client) *SnapshotMirror {
	m := &SnapshotMirror{client: client}
	m.write = func(ctx context.Context, data []byte) error {
		return m.client.Set(ctx, SnapshotKey, data, snapshotTTL)
	}
	m.start()
	return m
}

func (m *SnapshotMirror) start() {
	m.dirty = make(chan struct{}, 1)
	m.done = make(chan struct{})
	m.stopped = make(chan struct{})
	go m.run()
}

// Bind sets where snapshots come from. Events published before Bind are ignored.
func (m *SnapshotMirror) Bind(source func() models.Conversation) {
	m.mu.Lock()
	m.source = source
	m.mu.Unlock()
}

// Publish never blocks.
func (m *SnapshotMirror) Publish(Event) {
	if m == nil || m.dirty == nil {
		return
	}
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

// Close writes a pending snapshot, if any, and stops the writer.
func (m *SnapshotMirror) Close() {
	if m == nil || m.done == nil {
		return
	}
	m.once.Do(func() { close(m.done) })
	<-m.stopped
}

func (m *SnapshotMirror) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.dirty:
			m.store()
		case <-m.done:
			select {
			case <-m.dirty:
				m.store()
			default:
			}
			return
		}
	}
}

func (m *SnapshotMirror) store() {
	m.mu.Lock()
	source := m.source
	m.mu.Unlock()
	if source == nil {
		return
	}
	data, err := json.Marshal(source())
	if err != nil {
		log.Warn().Err(err).Msg("events: marshal snapshot failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := m.write(ctx, data); err != nil {
		log.Warn().Err(err).Msg("events: snapshot mirror write failed")
	}
}

// LoadSnapshot returns the mirrored transcript. ok is false when none is stored.
func LoadSnapshot(ctx context.Context, client *redis.Client) (snap models.Conversation, ok bool, err error) {
	raw, err := client.Get(ctx, SnapshotKey)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return snap, false, nil
		}
		return snap, false, errors.Wrap(err, "load snapshot")
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snap, false, errors.Wrap(err, "decode snapshot")
	}
	return snap, true, nil
}
