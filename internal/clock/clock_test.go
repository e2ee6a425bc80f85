package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowIsMonotonicAndZeroBased(t *testing.T) {
	c := New()
	first := c.Now()
	assert.GreaterOrEqual(t, first, int64(0))
	time.Sleep(5 * time.Millisecond)
	second := c.Now()
	assert.GreaterOrEqual(t, second, first)
}
