package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOAcrossGrowth(t *testing.T) {
	q := New[int](2)
	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}

	stats := q.Stats()
	assert.Equal(t, 100, stats.Len)
	assert.GreaterOrEqual(t, stats.Capacity, 100)
	assert.Positive(t, stats.Grown)

	q.Close()
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, int64(100), q.Stats().Popped)
}

func TestQueue_WrapAround(t *testing.T) {
	q := New[int](4)
	next := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			q.Push(round*3 + i)
		}
		for i := 0; i < 3; i++ {
			v, ok := q.Pop()
			require.True(t, ok)
			require.Equal(t, next, v)
			next++
		}
	}
	assert.Equal(t, 4, q.Stats().Capacity)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New[string](1)
	got := make(chan string, 1)

	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before Push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("hello")
	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake")
	}
}

func TestQueue_CloseDrainsThenStops(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.Push(2)
	q.Close()

	assert.False(t, q.Push(3))

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := New[int](1)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop()
			assert.False(t, ok)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters not released by Close")
	}
}

func TestQueue_ConcurrentProducersSingleConsumer(t *testing.T) {
	q := New[int](8)
	const producers, perProducer = 4, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}

	lastSeen := make(map[int]int)
	for n := 0; n < producers*perProducer; n++ {
		v, ok := q.Pop()
		require.True(t, ok)
		p := v / perProducer
		if last, seen := lastSeen[p]; seen {
			require.Greater(t, v, last, "per-producer order broken")
		}
		lastSeen[p] = v
	}
	wg.Wait()

	assert.Equal(t, int64(producers*perProducer), q.Stats().Popped)
}
