// Package bus is the publish/subscribe channel between the host and its
// presentation layer.
//
// Events are addressed either to one window (Target set to the window label)
// or to everyone (Target empty). Window-scoped listeners only see events for
// their own label; global listeners see everything published on their topic.
package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Topic names an event stream.
type Topic string

// Topics exchanged with the presentation layer.
const (
	// TopicExitRequested asks a window to flush its state. Host → window.
	TopicExitRequested Topic = "exit-requested"
	// TopicFrontendDone acknowledges TopicExitRequested. Window → host.
	TopicFrontendDone Topic = "frontend-done"
	// TopicListenerStart asks the host to re-arm the instance listener. Global.
	TopicListenerStart Topic = "listener-start"
	// TopicOpenTorrents carries a forwarded argument batch. Host → window.
	TopicOpenTorrents Topic = "open-torrents"
	// TopicCloseRequested is a window asking the application to exit. Window → host.
	TopicCloseRequested Topic = "close-requested"
	// TopicHideRequested is a window asking to be hidden. Window → host.
	TopicHideRequested Topic = "hide-requested"
)

// Event is one published message.
type Event struct {
	Topic   Topic
	Target  string
	Payload any
}

// Handler receives events. Handlers run on the publisher's goroutine and must
// not block for long.
type Handler func(Event)

type subscription struct {
	target string // empty = global
	fn     Handler
}

// Bus is a typed publish/subscribe hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]subscription
	nextID uint64
	logger *zap.Logger
}

// New creates an empty bus.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[Topic]map[uint64]subscription),
		logger: logger.Named("bus"),
	}
}

// Listen registers fn for events on topic addressed to target.
// The returned function removes the subscription; calling it twice is safe.
func (b *Bus) Listen(topic Topic, target string, fn Handler) (unlisten func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]subscription)
	}
	b.subs[topic][id] = subscription{target: target, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
		})
	}
}

// ListenGlobal registers fn for every event on topic regardless of target.
func (b *Bus) ListenGlobal(topic Topic, fn Handler) (unlisten func()) {
	return b.Listen(topic, "", fn)
}

// Once returns a channel that receives the first event on topic for target.
// Later events are discarded. The subscription is removed after the first
// delivery or when cancel is called, whichever comes first.
func (b *Bus) Once(topic Topic, target string) (<-chan Event, func()) {
	return b.OnceWhere(topic, target, nil)
}

// OnceWhere is Once restricted to events accepted by match. Rejected events
// are dropped and the receiver stays armed. A nil match accepts everything.
func (b *Bus) OnceWhere(topic Topic, target string, match func(Event) bool) (<-chan Event, func()) {
	ch := make(chan Event, 1)
	var fired sync.Once
	var unlisten func()
	var mu sync.Mutex

	cancel := func() {
		mu.Lock()
		u := unlisten
		mu.Unlock()
		if u != nil {
			u()
		}
	}

	mu.Lock()
	unlisten = b.Listen(topic, target, func(ev Event) {
		if match != nil && !match(ev) {
			return
		}
		fired.Do(func() {
			ch <- ev
			go cancel()
		})
	})
	mu.Unlock()
	return ch, cancel
}

// Emit publishes ev to the global listeners of its topic and to the listeners
// scoped to ev.Target.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, sub := range b.subs[ev.Topic] {
		if sub.target == "" || sub.target == ev.Target {
			handlers = append(handlers, sub.fn)
		}
	}
	b.mu.RUnlock()

	b.logger.Debug("emit",
		zap.String("topic", string(ev.Topic)),
		zap.String("target", ev.Target),
		zap.Int("listeners", len(handlers)))

	for _, fn := range handlers {
		fn(ev)
	}
}

// EmitTo is shorthand for a window-scoped Emit.
func (b *Bus) EmitTo(target string, topic Topic, payload any) {
	b.Emit(Event{Topic: topic, Target: target, Payload: payload})
}

// EmitGlobal is shorthand for an Emit without a target.
func (b *Bus) EmitGlobal(topic Topic, payload any) {
	b.Emit(Event{Topic: topic, Payload: payload})
}

// Listeners reports how many subscriptions exist for topic.
func (b *Bus) Listeners(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
