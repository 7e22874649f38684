package smr

import (
	"runtime"
	"time"
)

const (
	backoffSpins    = 16
	backoffMaxSleep = time.Millisecond
)

// backoff paces the blocking loops of ForceDispose.
type backoff struct {
	n     int
	sleep time.Duration
}

func (b *backoff) wait() {
	if b.n < backoffSpins {
		b.n++
		runtime.Gosched()
		return
	}
	if b.sleep == 0 {
		b.sleep = 10 * time.Microsecond
	}
	time.Sleep(b.sleep)
	if b.sleep < backoffMaxSleep {
		b.sleep *= 2
	}
}
