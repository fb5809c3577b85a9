package keypool

import "time"

// State is the derived condition of a credential at snapshot time.
type State string

const (
	StateFresh     State = "fresh"
	StateWarm      State = "warm"
	StateSaturated State = "saturated"
)

// KeyStats is a point-in-time view of one credential slot. Credential is
// masked; the raw value never leaves the pool through Stats.
type KeyStats struct {
	Index      int
	Credential string
	Usage      int
	LastUsed   time.Time
	State      State
}

// Stats returns a snapshot of every slot in pool order. A key whose window
// has elapsed is reported as fresh even though its counter is only reset on
// its next selection.
func (l *Limiter) Stats() []KeyStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	out := make([]KeyStats, 0, len(l.credentials))
	for i, key := range l.credentials {
		usage := l.usage[key]
		last := l.lastUsed[key]

		state := StateWarm
		switch {
		case usage == 0, !last.IsZero() && now.Sub(last) > l.window:
			state = StateFresh
		case usage >= l.capacity:
			state = StateSaturated
		}

		out = append(out, KeyStats{
			Index:      i,
			Credential: Mask(key),
			Usage:      usage,
			LastUsed:   last,
			State:      state,
		})
	}
	return out
}

// Mask hides all but the last four characters of a credential.
func Mask(credential string) string {
	const visible = 4
	if len(credential) <= visible {
		return "****"
	}
	return "****" + credential[len(credential)-visible:]
}
