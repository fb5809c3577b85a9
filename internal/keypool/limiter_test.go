package keypool

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(keys []string, capacity int, clock Clock) *Limiter {
	return New(keys, Options{CapacityPerWindow: capacity, Window: time.Minute, Clock: clock})
}

func TestNew_Defaults(t *testing.T) {
	l := New([]string{"a"}, Options{})

	assert.Equal(t, DefaultCapacityPerWindow, l.CapacityPerWindow())
	assert.Equal(t, DefaultWindow, l.Window())
	assert.Equal(t, 1, l.Len())
}

func TestNew_CopiesCredentials(t *testing.T) {
	keys := []string{"a", "b"}
	l := New(keys, Options{})
	keys[0] = "mutated"

	got, err := l.Select()
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestSelect_EmptyPool(t *testing.T) {
	l := New(nil, Options{})

	got, err := l.Select()
	assert.ErrorIs(t, err, ErrNoCredentialsAvailable)
	assert.Empty(t, got)
	assert.Equal(t, 0, l.cursor)
	assert.Empty(t, l.usage)
}

func TestSelect_ReturnsPoolMember(t *testing.T) {
	clock := newFakeClock()
	keys := []string{"k1", "k2", "k3"}
	l := newTestLimiter(keys, 2, clock)

	for i := 0; i < 50; i++ {
		got, err := l.Select()
		require.NoError(t, err)
		assert.Contains(t, keys, got)
		clock.Advance(time.Millisecond)
	}
}

func TestSelect_RoundRobinUnderLightLoad(t *testing.T) {
	clock := newFakeClock()
	keys := []string{"k1", "k2", "k3", "k4"}
	l := newTestLimiter(keys, 10, clock)

	var got []string
	for range keys {
		k, err := l.Select()
		require.NoError(t, err)
		got = append(got, k)
	}

	assert.Equal(t, keys, got)
	assert.Equal(t, 0, l.cursor)
}

func TestSelect_RoundRobinStartsAtCursor(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"k1", "k2", "k3"}, 10, clock)
	l.cursor = 2

	var got []string
	for i := 0; i < 3; i++ {
		k, err := l.Select()
		require.NoError(t, err)
		got = append(got, k)
	}

	assert.Equal(t, []string{"k3", "k1", "k2"}, got)
}

func TestSelect_CapacityEnforcementSingleKey(t *testing.T) {
	clock := newFakeClock()
	const capacity = 5
	l := newTestLimiter([]string{"only"}, capacity, clock)

	for i := 1; i <= capacity; i++ {
		sel, err := l.SelectDetailed()
		require.NoError(t, err)
		assert.Equal(t, PathHappy, sel.Path, "call %d", i)
		assert.Equal(t, i, sel.Usage, "call %d", i)
		clock.Advance(time.Second)
	}

	sel, err := l.SelectDetailed()
	require.NoError(t, err)
	assert.Equal(t, "only", sel.Credential)
	assert.Equal(t, PathOverflow, sel.Path)
	assert.Equal(t, capacity+1, sel.Usage)
	assert.Equal(t, capacity+1, l.usage["only"])
}

func TestSelect_LazyWindowReset(t *testing.T) {
	clock := newFakeClock()
	const capacity = 3
	l := newTestLimiter([]string{"only"}, capacity, clock)

	for i := 0; i < capacity; i++ {
		_, err := l.Select()
		require.NoError(t, err)
	}
	require.Equal(t, capacity, l.usage["only"])

	clock.Advance(time.Minute + time.Millisecond)

	sel, err := l.SelectDetailed()
	require.NoError(t, err)
	assert.Equal(t, PathHappy, sel.Path)
	assert.True(t, sel.WindowReset)
	assert.Equal(t, 1, l.usage["only"])
}

func TestSelect_WindowBoundaryIsExclusive(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"only"}, 1, clock)

	_, err := l.Select()
	require.NoError(t, err)

	// Exactly one window later the key is still inside it.
	clock.Advance(time.Minute)
	sel, err := l.SelectDetailed()
	require.NoError(t, err)
	assert.Equal(t, PathOverflow, sel.Path)
	assert.Equal(t, 2, sel.Usage)
}

func TestSelect_OverflowPicksLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"a", "b"}, 1, clock)

	_, err := l.Select() // a at t0
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = l.Select() // b at t0+1s
	require.NoError(t, err)
	clock.Advance(time.Second)

	cursorBefore := l.cursor
	sel, err := l.SelectDetailed()
	require.NoError(t, err)

	assert.Equal(t, "a", sel.Credential)
	assert.Equal(t, PathOverflow, sel.Path)
	assert.Equal(t, cursorBefore, l.cursor, "overflow must not move the cursor")
}

func TestSelect_OverflowTieGoesToFirstInPoolOrder(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"a", "b", "c"}, 1, clock)

	// Saturate all three at the same instant.
	for i := 0; i < 3; i++ {
		_, err := l.Select()
		require.NoError(t, err)
	}

	sel, err := l.SelectDetailed()
	require.NoError(t, err)
	assert.Equal(t, PathOverflow, sel.Path)
	assert.Equal(t, "a", sel.Credential)
	assert.Equal(t, 0, sel.Index)
}

func TestSelect_Scenario(t *testing.T) {
	clock := newFakeClock()
	l := New([]string{"A", "B"}, Options{CapacityPerWindow: 2, Window: 60 * time.Second, Clock: clock})

	var got []string
	for i := 0; i < 4; i++ {
		k, err := l.Select()
		require.NoError(t, err)
		got = append(got, k)
		clock.Advance(time.Millisecond)
	}
	assert.Equal(t, []string{"A", "B", "A", "B"}, got)
	assert.Equal(t, map[string]int{"A": 2, "B": 2}, l.usage)

	cursorBefore := l.cursor
	sel, err := l.SelectDetailed()
	require.NoError(t, err)
	assert.Equal(t, "A", sel.Credential)
	assert.Equal(t, PathOverflow, sel.Path)
	assert.Equal(t, 3, l.usage["A"])
	assert.Equal(t, 2, l.usage["B"])
	assert.Equal(t, cursorBefore, l.cursor)
}

func TestSelect_SkipsSaturatedKey(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"a", "b"}, 2, clock)
	l.usage["a"] = 2
	l.lastUsed["a"] = clock.Now()

	for i := 0; i < 2; i++ {
		k, err := l.Select()
		require.NoError(t, err)
		assert.Equal(t, "b", k)
	}
}

func TestSelect_OnlyWinnerMutated(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"a", "b", "c"}, 5, clock)

	_, err := l.Select()
	require.NoError(t, err)

	assert.Equal(t, 1, l.usage["a"])
	assert.Equal(t, 0, l.usage["b"])
	assert.Equal(t, 0, l.usage["c"])
	assert.True(t, l.lastUsed["b"].IsZero())
	assert.True(t, l.lastUsed["c"].IsZero())
}

func TestSelect_DuplicateCredentialsShareCounters(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"dup", "dup"}, 10, clock)

	for i := 0; i < 2; i++ {
		k, err := l.Select()
		require.NoError(t, err)
		assert.Equal(t, "dup", k)
	}

	assert.Equal(t, 2, l.usage["dup"])
	assert.Equal(t, 2, l.Len())
}

func TestResetUsage(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"a", "b"}, 2, clock)

	for i := 0; i < 3; i++ {
		_, err := l.Select()
		require.NoError(t, err)
	}
	cursorBefore := l.cursor
	lastA := l.lastUsed["a"]

	l.ResetUsage()

	assert.Equal(t, 0, l.usage["a"])
	assert.Equal(t, 0, l.usage["b"])
	assert.Equal(t, cursorBefore, l.cursor)
	assert.Equal(t, lastA, l.lastUsed["a"])
}

func TestResetUsage_ReopensSaturatedPool(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter([]string{"only"}, 1, clock)

	_, err := l.Select()
	require.NoError(t, err)
	l.ResetUsage()

	sel, err := l.SelectDetailed()
	require.NoError(t, err)
	assert.Equal(t, PathHappy, sel.Path)
	assert.False(t, sel.WindowReset)
	assert.Equal(t, 1, sel.Usage)
}

func TestSelect_ConcurrentAccess(t *testing.T) {
	keys := make([]string, 5)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	clock := newFakeClock()
	const capacity = 1000
	l := newTestLimiter(keys, capacity, clock)

	const workers, perWorker = 20, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := l.Select()
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, k := range keys {
		total += l.usage[k]
		assert.Equal(t, workers*perWorker/len(keys), l.usage[k], "round robin should spread evenly")
	}
	assert.Equal(t, workers*perWorker, total)
}
