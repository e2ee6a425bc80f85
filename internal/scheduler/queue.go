package scheduler

import "container/list"

// Queue is an ordered FIFO of pending Packets, an owned deque per
// spec.md §9 REDESIGN FLAGS (the original's C tail-queue becomes a
// standard library list — O(1) head/tail, no manual linked-list code).
type Queue struct {
	l *list.List
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{l: list.New()}
}

// PushBack appends p to the tail.
func (q *Queue) PushBack(p Packet) {
	q.l.PushBack(p)
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	return q.l.Len()
}

// Empty reports whether the queue has no packets.
func (q *Queue) Empty() bool {
	return q.l.Len() == 0
}

// Front returns the head packet and whether the queue is non-empty.
func (q *Queue) Front() (Packet, bool) {
	e := q.l.Front()
	if e == nil {
		return Packet{}, false
	}
	return e.Value.(Packet), true
}

// PopFront removes and returns the head packet.
func (q *Queue) PopFront() (Packet, bool) {
	e := q.l.Front()
	if e == nil {
		return Packet{}, false
	}
	q.l.Remove(e)
	return e.Value.(Packet), true
}

// PopReady removes and returns every packet at the head whose SchedTime
// is <= now, in order, stopping at the first packet not yet due.
func (q *Queue) PopReady(now int64) []Packet {
	var ready []Packet
	for {
		e := q.l.Front()
		if e == nil {
			break
		}
		p := e.Value.(Packet)
		if p.SchedTime > now {
			break
		}
		q.l.Remove(e)
		ready = append(ready, p)
	}
	return ready
}

// TailIsMotion reports whether the queue's tail packet is a motion
// packet, i.e. whether OverwriteTailMotion may coalesce into it.
func (q *Queue) TailIsMotion() bool {
	e := q.l.Back()
	if e == nil {
		return false
	}
	p := e.Value.(Packet)
	return p.Kind == KindMotion
}

// OverwriteTailMotion replaces the tail packet's motion payload in
// place, used for coalescing consecutive pointer updates (spec.md §4.6
// step 6). It must only be called when TailIsMotion is true.
func (q *Queue) OverwriteTailMotion(x, y int32) {
	e := q.l.Back()
	if e == nil {
		return
	}
	p := e.Value.(Packet)
	p.Motion.X = x
	p.Motion.Y = y
	e.Value = p
}
