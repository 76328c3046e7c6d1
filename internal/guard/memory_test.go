package guard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemory_SuppressesWithinWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewMemory(WithClock(clock.Now), WithWindow(time.Minute))

	ok, err := g.CanPrint(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(59 * time.Second)
	ok, _ = g.CanPrint(ctx, "o1")
	assert.False(t, ok)

	ok, _ = g.CanPrint(ctx, "o2")
	assert.True(t, ok, "other orders are unaffected")
}

func TestMemory_AdmitsAgainAfterWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewMemory(WithClock(clock.Now), WithWindow(time.Minute))

	ok, _ := g.CanPrint(ctx, "o1")
	require.True(t, ok)

	clock.Advance(time.Minute)
	ok, _ = g.CanPrint(ctx, "o1")
	assert.True(t, ok)
}

func TestMemory_SuppressedAttemptDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewMemory(WithClock(clock.Now), WithWindow(time.Minute))

	ok, _ := g.CanPrint(ctx, "o1")
	require.True(t, ok)
	clock.Advance(40 * time.Second)
	ok, _ = g.CanPrint(ctx, "o1")
	require.False(t, ok)
	clock.Advance(20 * time.Second)
	ok, _ = g.CanPrint(ctx, "o1")
	assert.True(t, ok)
}

func TestMemory_ExpiredEntriesAreEvicted(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewMemory(WithClock(clock.Now), WithWindow(time.Minute))

	for i := 0; i < 5; i++ {
		_, _ = g.CanPrint(ctx, fmt.Sprintf("old-%d", i))
	}
	require.Equal(t, 5, g.Len())

	clock.Advance(2 * time.Minute)
	_, _ = g.CanPrint(ctx, "new")
	assert.Equal(t, 1, g.Len())
}

func TestMemory_MaxEntriesBoundsMemory(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := NewMemory(WithClock(clock.Now), WithMaxEntries(3))

	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		ok, _ := g.CanPrint(ctx, fmt.Sprintf("o%d", i))
		require.True(t, ok)
		assert.LessOrEqual(t, g.Len(), 3)
	}
	ok, _ := g.CanPrint(ctx, "o9")
	assert.False(t, ok, "newest admissions are kept")
}

func TestMemory_ConcurrentCallersExactlyOneAdmitted(t *testing.T) {
	ctx := context.Background()
	g := NewMemory()

	const callers = 64
	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, _ := g.CanPrint(ctx, "same-order"); ok {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}

func TestMemory_Release(t *testing.T) {
	ctx := context.Background()
	g := NewMemory()

	ok, _ := g.CanPrint(ctx, "o1")
	require.True(t, ok)
	require.NoError(t, g.Release(ctx, "o1"))
	ok, _ = g.CanPrint(ctx, "o1")
	assert.True(t, ok)
}
