package messages

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing microsecond timestamps, so messages appended
// by one process keep their insert order even within the same microsecond.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	micros := c.now().UnixMicro()
	if micros <= c.last {
		micros = c.last + 1
	}
	c.last = micros
	return micros
}
