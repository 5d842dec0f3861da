package game

import (
	"time"

	"github.com/benbjohnson/clock"
)

// TurnTimer is a single-shot countdown owned by one room. It is not safe for
// concurrent use; the owning room serializes access under its lock.
//
// Every Arm issues a new handle. A callback that fires after its timer was
// replaced or disarmed sees a handle that no longer matches Current and must
// do nothing.
type TurnTimer struct {
	clock  clock.Clock
	timer  *clock.Timer
	seq    uint64
	handle uint64
}

// NewTurnTimer returns a disarmed timer driven by c.
func NewTurnTimer(c clock.Clock) *TurnTimer {
	if c == nil {
		c = clock.New()
	}
	return &TurnTimer{clock: c}
}

// Arm disarms any pending countdown and schedules fire(handle) after d.
func (t *TurnTimer) Arm(d time.Duration, fire func(handle uint64)) uint64 {
	t.Disarm()
	t.seq++
	h := t.seq
	t.handle = h
	t.timer = t.clock.AfterFunc(d, func() { fire(h) })
	return h
}

// Disarm cancels the pending countdown, if any. Stop may lose the race with
// a callback already in flight; the handle check covers that case.
func (t *TurnTimer) Disarm() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.handle = 0
}

// Current returns the live handle, or 0 when disarmed.
func (t *TurnTimer) Current() uint64 {
	return t.handle
}

// Armed reports whether a countdown is pending.
func (t *TurnTimer) Armed() bool {
	return t.handle != 0
}
