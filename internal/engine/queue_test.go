package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := newQueue[string]()

	ok := q.Enqueue("a")
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "a", got)
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[int]()

	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}

	for want := 1; want <= 3; want++ {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := newQueue[int]()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should fail")
}

func TestQueue_Len(t *testing.T) {
	q := newQueue[int]()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(1)
	q.Enqueue(2)
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Close(t *testing.T) {
	q := newQueue[int]()
	q.Enqueue(1)

	q.Close()
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(2), "enqueue after close should fail")

	// Items queued before close are still available
	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, got)

	// Close is idempotent
	q.Close()
}

func TestQueue_WaitSignals(t *testing.T) {
	q := newQueue[int]()

	select {
	case <-q.Wait():
		t.Fatal("empty queue should not signal")
	default:
	}

	q.Enqueue(1)
	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("enqueue should signal")
	}
}

func TestQueue_WaitClosedOnClose(t *testing.T) {
	q := newQueue[int]()
	q.Close()

	select {
	case _, ok := <-q.Wait():
		assert.False(t, ok, "signal channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("close should wake waiters")
	}
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := newQueue[int]()

	const goroutines, perG = 10, 100
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perG, q.Len())
}
