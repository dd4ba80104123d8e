package server

import "sync"

// Bus is a typed, fan-out publish/subscribe channel, generalizing the
// teacher's per-subscriber notification idiom
// (modules/consensus/subscribers.go's ConsensusSetSubscribe plus its
// non-blocking channel send) to any event payload via a generic. Each
// subscriber gets its own buffered channel; a slow or inattentive
// subscriber drops events rather than stalling the publisher.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers []chan T
}

// NewBus returns an empty Bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a new subscriber and returns its event channel. The
// channel is never closed by the Bus; callers drop it by discarding the
// reference once they stop reading.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, 16)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers v to every current subscriber without blocking; a
// subscriber whose buffer is full simply misses the event.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
		}
	}
}

// PlayerEvent carries a player join or leave notification.
type PlayerEvent struct {
	Username string
}

// ChatEvent carries one chat message for subscribers (logging, relay,
// moderation) to observe.
type ChatEvent struct {
	From string
	Text string
}

// BlockChangeEvent mirrors world.BlockChangeFunc's payload for
// subscribers (logging, a future admin module) that want block-change
// notifications as an event stream rather than a direct callback. Actual
// propagation to subscribed clients happens directly in onBlockChange,
// not through this bus.
type BlockChangeEvent struct {
	ColumnX, ColumnZ int32
	Dimension        int8
	X, Y, Z          int32
	TypeID           uint16
	Metadata         uint8
}

// Events bundles every domain event bus the server publishes to. Each
// kind gets its own typed Bus rather than one generic envelope bus, so
// subscribers never type-switch to find the events they care about.
type Events struct {
	PlayerJoin  *Bus[PlayerEvent]
	PlayerLeave *Bus[PlayerEvent]
	Chat        *Bus[ChatEvent]
	BlockChange *Bus[BlockChangeEvent]
	Shutdown    *Bus[struct{}]
}

// NewEvents returns a fully initialized Events bundle.
func NewEvents() *Events {
	return &Events{
		PlayerJoin:  NewBus[PlayerEvent](),
		PlayerLeave: NewBus[PlayerEvent](),
		Chat:        NewBus[ChatEvent](),
		BlockChange: NewBus[BlockChangeEvent](),
		Shutdown:    NewBus[struct{}](),
	}
}
