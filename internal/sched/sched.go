package sched

import (
	"container/heap"
	"sync"
)

// Clock reports the current time in seconds on the timeline timers fire against.
type Clock interface {
	Now() float64
}

// ManualClock is a Clock advanced explicitly, for tests and offline rendering.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// TimerID identifies a scheduled action for cancellation.
type TimerID uint64

// Action runs when its timer comes due. at is the time it was scheduled for.
type Action func(at float64)

type timer struct {
	id     TimerID
	at     float64
	seq    uint64
	action Action
	index  int
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Queue is a priority queue of timed actions ordered by fire time, then by
// insertion order. It is not safe for concurrent use; the owning control
// loop serializes access.
type Queue struct {
	timers timerHeap
	byID   map[TimerID]*timer
	nextID TimerID
	seq    uint64
}

func NewQueue() *Queue {
	return &Queue{byID: make(map[TimerID]*timer)}
}

// At schedules action to run once the clock reaches at.
func (q *Queue) At(at float64, action Action) TimerID {
	q.nextID++
	q.seq++
	t := &timer{id: q.nextID, at: at, seq: q.seq, action: action}
	heap.Push(&q.timers, t)
	q.byID[t.id] = t
	return t.id
}

// After schedules action delay seconds past now. Negative delays fire on
// the next RunDue.
func (q *Queue) After(now, delay float64, action Action) TimerID {
	if delay < 0 {
		delay = 0
	}
	return q.At(now+delay, action)
}

// Cancel removes a pending timer. It reports whether the timer was pending.
func (q *Queue) Cancel(id TimerID) bool {
	t, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	heap.Remove(&q.timers, t.index)
	return true
}

// Pending reports whether id is still scheduled.
func (q *Queue) Pending(id TimerID) bool {
	_, ok := q.byID[id]
	return ok
}

func (q *Queue) Len() int { return len(q.timers) }

// Next returns the fire time of the earliest pending timer.
func (q *Queue) Next() (float64, bool) {
	if len(q.timers) == 0 {
		return 0, false
	}
	return q.timers[0].at, true
}

// RunDue runs every timer whose fire time is at or before now, earliest
// first, and returns how many ran. Timers scheduled by an action are run in
// the same pass when they are already due.
func (q *Queue) RunDue(now float64) int {
	ran := 0
	for len(q.timers) > 0 && q.timers[0].at <= now {
		t := heap.Pop(&q.timers).(*timer)
		delete(q.byID, t.id)
		t.action(t.at)
		ran++
	}
	return ran
}

// Clear drops every pending timer without running it.
func (q *Queue) Clear() {
	q.timers = q.timers[:0]
	clear(q.byID)
}
