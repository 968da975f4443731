package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates fetch admissions: one per user per cooldown window. The
// decision and the recording of an admission happen inside the per-user
// rate.Limiter under its own lock, so two concurrent requests from the same
// user can never both be admitted.
//
// State is in-memory only; a restart reopens every window. That is fine for
// best-effort abuse pacing, which is all this is.
type Limiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	users    map[int64]*rate.Limiter
}

func New(cooldown time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Limiter{cooldown: cooldown, users: make(map[int64]*rate.Limiter)}
}

// Admit reports whether a fetch for the user may proceed at now. When denied,
// retryAfter is the remaining wait. An allowed call consumes the window
// immediately and is never refunded.
func (l *Limiter) Admit(userID int64, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	lim := l.users[userID]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(l.cooldown), 1)
		l.users[userID] = lim
	}
	cooldown := l.cooldown
	l.mu.Unlock()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, cooldown
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// SetCooldown applies a new window. Per-user state is rebuilt, which briefly
// reopens everyone's window; acceptable for a pacing knob.
func (l *Limiter) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.cooldown = d
	l.users = make(map[int64]*rate.Limiter)
	l.mu.Unlock()
}

func (l *Limiter) Cooldown() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cooldown
}
