package queue

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Seq int
	Z   float64
}

func TestQueue_FIFO(t *testing.T) {
	q := New[*snapshot]()

	s1 := &snapshot{Seq: 1, Z: 9.0}
	s2 := &snapshot{Seq: 2, Z: 9.5}
	s3 := &snapshot{Seq: 3, Z: 10.0}

	q.Put(s1)
	q.Put(s2)
	q.Put(s3)

	require.Equal(t, 3, q.Len())

	var got []*snapshot
	for {
		s, ok := q.TryGet()
		if !ok {
			break
		}
		got = append(got, s)
	}

	if diff := cmp.Diff([]*snapshot{s1, s2, s3}, got); diff != "" {
		t.Errorf("unexpected drain order (-want +got):\n%s", diff)
	}
	assert.True(t, q.IsEmpty())
}

func TestQueue_EmptyOperations(t *testing.T) {
	q := New[int]()

	v, ok := q.TryGet()
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())

	// queue is reusable after becoming empty
	q.Put(7)
	v, ok = q.TryGet()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	q.Put(8)
	assert.False(t, q.IsEmpty())
}

func TestQueue_Drain(t *testing.T) {
	q := New[string]()
	for _, s := range []string{"CHANGE ALTITUDE: 1.00", "CHANGE YAW: 90.00", "CHANGE YAW: -12.50"} {
		q.Put(s)
	}

	got := q.Drain()
	want := []string{"CHANGE ALTITUDE: 1.00", "CHANGE YAW: 90.00", "CHANGE YAW: -12.50"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected drain result (-want +got):\n%s", diff)
	}
	assert.True(t, q.IsEmpty())

	q.Put("next")
	s, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, "next", s)
}

func TestQueue_ConcurrentProducersSingleConsumer(t *testing.T) {
	const producers = 4
	const perProducer = 500

	q := New[[2]int]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Put([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Len())

	// items from the same producer keep their relative order
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	count := 0
	for {
		item, ok := q.TryGet()
		if !ok {
			break
		}
		p, seq := item[0], item[1]
		if seq <= last[p] {
			t.Fatalf("producer %d: item %d dequeued after %d", p, seq, last[p])
		}
		last[p] = seq
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

func TestQueue_ConcurrentConsumersDeliverOnce(t *testing.T) {
	const items = 2000

	q := New[int]()
	for i := 0; i < items; i++ {
		q.Put(i)
	}

	var mu sync.Mutex
	seen := make(map[int]int, items)

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.TryGet()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, items)
	for v, n := range seen {
		if n != 1 {
			t.Errorf("item %d delivered %d times", v, n)
		}
	}
}
