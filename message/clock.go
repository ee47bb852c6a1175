package message

import (
	"sync"
	"time"
)

// Clock hands out creation timestamps in milliseconds since the unix epoch.
// Stamps from one Clock never go backwards, even if the wall clock does.
// They are diagnostic only and say nothing about ordering across senders.
type Clock struct {
	lock sync.Mutex
	now  func() time.Time
	last int64
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Millis() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	ms := c.now().UnixMilli()
	if ms < c.last {
		ms = c.last
	}
	c.last = ms
	return ms
}

var defaultClock = NewClock(time.Now)
