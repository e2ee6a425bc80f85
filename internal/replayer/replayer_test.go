package replayer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/keyveil/internal/scheduler"
)

func TestWireAxisSourceMapping(t *testing.T) {
	assert.Equal(t, wireAxisSource(scheduler.ScrollWheel), wireAxisSource(scheduler.ScrollWheel))
	assert.NotEqual(t, wireAxisSource(scheduler.ScrollWheel), wireAxisSource(scheduler.ScrollFinger))
	assert.NotEqual(t, wireAxisSource(scheduler.ScrollFinger), wireAxisSource(scheduler.ScrollContinuous))
}

func TestTimestampOverflowDetected(t *testing.T) {
	r := &Replayer{}
	q := newQueueWithOnePacket(scheduler.Packet{Kind: scheduler.KindButton, SchedTime: int64(math.MaxUint32) + 1})
	err := r.Drain(q, int64(math.MaxUint32)+1)
	assert.Error(t, err)
	var overflow *TimestampOverflowError
	assert.ErrorAs(t, err, &overflow)
}

func newQueueWithOnePacket(p scheduler.Packet) *scheduler.Queue {
	q := scheduler.NewQueue()
	q.PushBack(p)
	return q
}
