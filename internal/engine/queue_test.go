package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem(key string) *Item {
	return NewItem(key, nil, "")
}

func TestWorkQueue_EnqueueDequeue(t *testing.T) {
	q := newWorkQueue(0)

	ok := q.Enqueue(testItem("R-1"))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "R-1", got.Key)
}

func TestWorkQueue_FIFO(t *testing.T) {
	q := newWorkQueue(3)

	for _, key := range []string{"A", "B", "C"} {
		q.Enqueue(testItem(key))
	}

	for _, want := range []string{"A", "B", "C"} {
		it, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, it.Key)
	}
}

func TestWorkQueue_ReenqueueGoesToBack(t *testing.T) {
	q := newWorkQueue(2)
	q.Enqueue(testItem("A"))
	q.Enqueue(testItem("B"))

	a, _ := q.TryDequeue()
	q.Enqueue(a)

	first, _ := q.TryDequeue()
	second, _ := q.TryDequeue()
	assert.Equal(t, "B", first.Key)
	assert.Equal(t, "A", second.Key)
}

func TestWorkQueue_TryDequeue_Empty(t *testing.T) {
	q := newWorkQueue(0)

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestWorkQueue_Close(t *testing.T) {
	q := newWorkQueue(0)
	q.Enqueue(testItem("A"))
	q.Enqueue(testItem("B"))

	rest := q.Close()
	require.Len(t, rest, 2)
	assert.Equal(t, "A", rest[0].Key)
	assert.Equal(t, 0, q.Len())

	ok := q.Enqueue(testItem("C"))
	assert.False(t, ok, "enqueue after close should return false")
}

func TestWorkQueue_Len(t *testing.T) {
	q := newWorkQueue(0)

	assert.Equal(t, 0, q.Len())

	q.Enqueue(testItem("1"))
	assert.Equal(t, 1, q.Len())

	q.Enqueue(testItem("2"))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestWorkQueue_ThreadSafe(t *testing.T) {
	q := newWorkQueue(0)

	const producers = 10
	const itemsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				q.Enqueue(testItem(fmt.Sprintf("%d-%d", producerID, i)))
			}
		}(p)
	}
	wg.Wait()

	seen := map[string]bool{}
	for {
		it, ok := q.TryDequeue()
		if !ok {
			break
		}
		seen[it.Key] = true
	}
	assert.Len(t, seen, producers*itemsPerProducer)
}
