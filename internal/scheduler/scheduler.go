package scheduler

import "github.com/bnema/keyveil/internal/rng"

// Scheduler draws a monotonicity-respecting random release time for
// each packet it enqueues, per spec.md §4.7. It does not sort: ordering
// is preserved by construction, not by a post-hoc sort pass.
type Scheduler struct {
	queue       *Queue
	maxDelay    int64
	prevRelease int64
}

// New returns a Scheduler with the given maximum per-event delay in
// milliseconds (the operator's -d/--delay flag, default 100).
func New(maxDelay int64) *Scheduler {
	return &Scheduler{queue: NewQueue(), maxDelay: maxDelay}
}

// Queue exposes the underlying FIFO for the replayer to drain.
func (s *Scheduler) Queue() *Queue {
	return s.queue
}

// Enqueue schedules p for release at some time in [lower, maxDelay]
// milliseconds from now, where lower prevents this packet from being
// scheduled earlier than an already-queued older one.
func (s *Scheduler) Enqueue(p Packet, now int64) (Packet, error) {
	lower := s.prevRelease - now
	if lower < 0 {
		lower = 0
	}
	if lower > s.maxDelay {
		lower = s.maxDelay
	}
	delay, err := rng.UniformIn(lower, s.maxDelay)
	if err != nil {
		return Packet{}, err
	}
	p.SchedTime = now + delay
	s.prevRelease = p.SchedTime
	s.queue.PushBack(p)
	return p, nil
}

// EnqueueMotion implements the coalescing rule of spec.md §4.6 step 6:
// if the queue's tail is an unreleased motion packet, its coordinates
// are overwritten in place instead of enqueuing a new packet. It
// reports whether a new packet was enqueued (false means coalesced).
func (s *Scheduler) EnqueueMotion(x, y int32, now int64) (enqueued bool, err error) {
	if s.queue.TailIsMotion() {
		s.queue.OverwriteTailMotion(x, y)
		return false, nil
	}
	_, err = s.Enqueue(Packet{Kind: KindMotion, Motion: Motion{X: x, Y: y}}, now)
	if err != nil {
		return false, err
	}
	return true, nil
}

// HeadDeadline returns the scheduled time of the queue's head packet and
// whether the queue is non-empty — the event loop's poll timeout is
// derived from this (spec.md §4.10 step 6).
func (s *Scheduler) HeadDeadline() (int64, bool) {
	p, ok := s.queue.Front()
	if !ok {
		return 0, false
	}
	return p.SchedTime, true
}
