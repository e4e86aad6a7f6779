// Package eventbus is an in-memory publish/subscribe bus.
// The chat loop publishes TopicTurnCompleted after each aggregated turn and
// catalog mutations publish TopicCatalogChanged; the refresher subscribes to
// recompute derived search text without polling.
//
// Design:
//   - Buffered Go channel per topic.
//   - Publish is non-blocking: the event is dropped if a subscriber lags.
//   - Subscribe returns a read-only channel; the caller owns the consumption loop.
//   - No persistence: events are fire-and-forget.
package eventbus

import "sync"

// Well-known topics.
const (
	TopicTurnCompleted  = "turn.completed"
	TopicCatalogChanged = "catalog.changed"
)

// CatalogChange is the payload for TopicCatalogChanged.
type CatalogChange struct {
	WorkspaceID string
	EntityType  string
	EntityID    string
}

// TurnCompleted is the payload for TopicTurnCompleted.
type TurnCompleted struct {
	WorkspaceID string
	UserID      string
	TurnID      string
	Steps       int
}

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const defaultBufferSize = 100

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	bufferSize  int
	subscribers map[string][]chan Event
}

// New returns a new in-memory Bus with the default per-subscriber buffer.
func New() *Bus {
	return NewWithBuffer(defaultBufferSize)
}

// NewWithBuffer returns a Bus whose subscriber channels hold up to size events.
func NewWithBuffer(size int) *Bus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Bus{
		bufferSize:  size,
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe registers a new subscriber for topic and returns a read-only channel.
// The caller must consume the channel or events will be dropped on Publish.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, b.bufferSize)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends an Event to all subscribers of topic.
// If a subscriber's buffer is full the event is dropped (non-blocking).
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}
	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			// subscriber lagging, drop
		}
	}
}
