// Package keypool spreads outbound model calls across a pool of
// interchangeable API credentials. Each credential may be selected at most
// CapacityPerWindow times per window; once every credential is saturated the
// least recently used one is handed out anyway, so callers always get a key.
//
// Window expiry is evaluated lazily: a saturated credential becomes fresh
// again only when a selection scan reaches it after the window has elapsed.
// No background timer touches the pool.
package keypool

import (
	"errors"
	"sync"
	"time"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultCapacityPerWindow = 20
	DefaultWindow            = 60 * time.Second
)

// ErrNoCredentialsAvailable is returned by Select when the pool is empty.
var ErrNoCredentialsAvailable = errors.New("keypool: no credentials available")

// Path identifies which branch of the selection algorithm produced a key.
type Path string

const (
	// PathHappy means the key had capacity left or its window had elapsed.
	PathHappy Path = "happy"
	// PathOverflow means every key was saturated and the least recently used
	// one was returned over its cap.
	PathOverflow Path = "overflow"
)

// Selection describes a single Select call.
type Selection struct {
	Credential string
	Index      int
	Path       Path
	// WindowReset is true when the key's window had elapsed and its usage
	// restarted at 1.
	WindowReset bool
	Usage       int
}

// Options configures a Limiter.
type Options struct {
	CapacityPerWindow int
	Window            time.Duration
	Clock             Clock
}

// Limiter is the credential pool. The set of credentials is fixed at
// construction; only counters, timestamps and the cursor change afterwards.
// It is safe for concurrent use.
type Limiter struct {
	capacity int
	window   time.Duration
	clock    Clock

	mu          sync.Mutex
	credentials []string
	usage       map[string]int
	lastUsed    map[string]time.Time // zero value means never used
	cursor      int
}

// New builds a pool over credentials in the given order. An empty pool is
// allowed; every Select on it fails with ErrNoCredentialsAvailable.
//
// Counters are keyed by credential string, so a credential listed twice
// occupies two scan slots but shares one usage count and timestamp.
func New(credentials []string, opts Options) *Limiter {
	if opts.CapacityPerWindow <= 0 {
		opts.CapacityPerWindow = DefaultCapacityPerWindow
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}

	l := &Limiter{
		capacity:    opts.CapacityPerWindow,
		window:      opts.Window,
		clock:       opts.Clock,
		credentials: append([]string(nil), credentials...),
		usage:       make(map[string]int, len(credentials)),
		lastUsed:    make(map[string]time.Time, len(credentials)),
	}
	for _, c := range l.credentials {
		l.usage[c] = 0
		l.lastUsed[c] = time.Time{}
	}
	return l
}

// Select returns the credential to use for the next outbound call.
func (l *Limiter) Select() (string, error) {
	sel, err := l.SelectDetailed()
	if err != nil {
		return "", err
	}
	return sel.Credential, nil
}

// SelectDetailed is Select with a report of how the credential was chosen.
func (l *Limiter) SelectDetailed() (Selection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.credentials)
	if n == 0 {
		return Selection{}, ErrNoCredentialsAvailable
	}

	now := l.clock.Now()

	for i := 0; i < n; i++ {
		idx := (l.cursor + i) % n
		key := l.credentials[idx]

		elapsed := l.lastUsed[key].IsZero() || now.Sub(l.lastUsed[key]) > l.window
		if !elapsed && l.usage[key] >= l.capacity {
			continue
		}

		if elapsed {
			l.usage[key] = 1
		} else {
			l.usage[key]++
		}
		l.lastUsed[key] = now
		l.cursor = (idx + 1) % n

		return Selection{
			Credential:  key,
			Index:       idx,
			Path:        PathHappy,
			WindowReset: elapsed,
			Usage:       l.usage[key],
		}, nil
	}

	// Every key is inside its window and at capacity. Hand out the least
	// recently used one; the first in pool order wins a tie. The cursor stays
	// put so overflow picks do not skew the rotation.
	oldest := 0
	for i := 1; i < n; i++ {
		if l.lastUsed[l.credentials[i]].Before(l.lastUsed[l.credentials[oldest]]) {
			oldest = i
		}
	}
	key := l.credentials[oldest]
	l.usage[key]++
	l.lastUsed[key] = now

	return Selection{
		Credential: key,
		Index:      oldest,
		Path:       PathOverflow,
		Usage:      l.usage[key],
	}, nil
}

// ResetUsage zeroes every usage count. Timestamps and the cursor are left
// alone.
func (l *Limiter) ResetUsage() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.usage {
		l.usage[key] = 0
	}
}

// Len returns the number of credential slots in the pool.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.credentials)
}

// CapacityPerWindow returns the per-key cap.
func (l *Limiter) CapacityPerWindow() int { return l.capacity }

// Window returns the cooldown window.
func (l *Limiter) Window() time.Duration { return l.window }
