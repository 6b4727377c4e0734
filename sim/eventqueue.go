package sim

import "container/heap"

// EventQueue is a queue of events ordered by the time of the events.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int
}

// NewEventQueue creates a new event queue.
func NewEventQueue() EventQueue {
	q := new(eventQueueImpl)
	heap.Init(&q.events)

	return q
}

type eventQueueImpl struct {
	events eventHeap
}

func (q *eventQueueImpl) Push(evt Event) {
	heap.Push(&q.events, evt)
}

func (q *eventQueueImpl) Pop() Event {
	return heap.Pop(&q.events).(Event)
}

func (q *eventQueueImpl) Peek() Event {
	return q.events[0]
}

func (q *eventQueueImpl) Len() int {
	return len(q.events)
}

type eventHeap []Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].Time() < h[j].Time()
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]

	return evt
}
