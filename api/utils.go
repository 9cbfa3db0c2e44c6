package api

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	lastEventTimestamp int64
)

// nextEventTimestamp returns strictly increasing nanosecond timestamps so
// board events order deterministically even within one clock tick.
func nextEventTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastEventTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastEventTimestamp, last, now) {
			return now
		}
	}
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
