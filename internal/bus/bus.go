package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cbegin/grainscope/internal/logging"
)

// DefaultCapacity is the per-topic queue bound.
const DefaultCapacity = 1000

// Handler receives delivered messages on the draining goroutine.
type Handler func(Message)

// ring is a bounded FIFO that overwrites its oldest entry when full.
type ring struct {
	buf     []Message
	head    int
	size    int
	dropped uint64
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Message, capacity)}
}

func (r *ring) push(m Message) {
	if r.size == len(r.buf) {
		r.buf[r.head] = m
		r.head = (r.head + 1) % len(r.buf)
		r.dropped++
		return
	}
	r.buf[(r.head+r.size)%len(r.buf)] = m
	r.size++
}

func (r *ring) takeAll() []Message {
	if r.size == 0 {
		return nil
	}
	out := make([]Message, r.size)
	for i := range out {
		j := (r.head + i) % len(r.buf)
		out[i] = r.buf[j]
		r.buf[j] = nil
	}
	r.head, r.size = 0, 0
	return out
}

func (r *ring) clear() {
	clear(r.buf)
	r.head, r.size = 0, 0
}

type subscription struct {
	id uint64
	fn Handler
}

// Bus queues messages per topic and delivers them to subscribers when
// drained. Publishing never blocks; a full queue drops its oldest message.
type Bus struct {
	mu       sync.Mutex
	queues   [numTopics]*ring
	handlers [numTopics][]subscription
	nextID   uint64
	log      *slog.Logger
}

// New creates a bus with the given per-topic capacity. Non-positive capacity
// selects DefaultCapacity.
func New(capacity int, logger *slog.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{log: logging.Component(logger, "bus")}
	for i := range b.queues {
		b.queues[i] = newRing(capacity)
	}
	return b
}

// Publish enqueues m on its topic.
func (b *Bus) Publish(m Message) {
	t := m.Topic()
	if t < 0 || t >= numTopics {
		return
	}
	b.mu.Lock()
	b.queues[t].push(m)
	b.mu.Unlock()
}

// Subscribe registers fn for topic and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(topic Topic, fn Handler) func() {
	if topic < 0 || topic >= numTopics || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, s := range subs {
			if s.id == id {
				b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Drain empties every queue and delivers the messages in FIFO order per
// topic. Handlers run without the bus lock held, so they may publish or
// subscribe; anything published during delivery waits for the next drain.
// It returns the number of messages taken from the queues.
func (b *Bus) Drain() int {
	var (
		batches [numTopics][]Message
		subs    [numTopics][]subscription
	)
	b.mu.Lock()
	for t := range b.queues {
		batches[t] = b.queues[t].takeAll()
		subs[t] = append([]subscription(nil), b.handlers[t]...)
	}
	b.mu.Unlock()

	n := 0
	for t := range batches {
		for _, m := range batches[t] {
			n++
			for _, s := range subs[t] {
				b.deliver(s.fn, m)
			}
		}
	}
	return n
}

func (b *Bus) deliver(fn Handler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("message handler panicked",
				"topic", m.Topic().String(),
				"message", fmt.Sprintf("%T", m),
				"panic", r)
		}
	}()
	fn(m)
}

// Clear drops every queued message.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		q.clear()
	}
}

// TopicStats describes one topic's queue.
type TopicStats struct {
	Queued   int
	Handlers int
	Dropped  uint64
}

// Stats returns queue depth, subscriber count and drop count per topic.
func (b *Bus) Stats() map[Topic]TopicStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Topic]TopicStats, numTopics)
	for t := Topic(0); t < numTopics; t++ {
		out[t] = TopicStats{
			Queued:   b.queues[t].size,
			Handlers: len(b.handlers[t]),
			Dropped:  b.queues[t].dropped,
		}
	}
	return out
}
