package dispatch_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comstore/storefront_sdk_go/internal/dispatch"
)

func TestDrainDeliversInOrder(t *testing.T) {
	var q dispatch.Queue[int]
	q.Push(1, 2)
	q.Push(3)

	var got []int
	q.Drain(func(v int) { got = append(got, v) })
	require.Equal(t, []int{1, 2, 3}, got)
	require.Zero(t, q.Len())
}

func TestNestedDrainDefersToActiveDrainer(t *testing.T) {
	var q dispatch.Queue[string]
	var got []string
	var deliver func(string)
	deliver = func(v string) {
		got = append(got, v)
		if v == "first" {
			q.Push("nested")
			q.Drain(deliver)
			got = append(got, "after nested drain")
		}
	}

	q.Push("first", "second")
	q.Drain(deliver)
	require.Equal(t, []string{"first", "after nested drain", "second", "nested"}, got)
}

func TestConcurrentDrainKeepsPushOrder(t *testing.T) {
	var (
		q       dispatch.Queue[int]
		orderMu sync.Mutex
		next    int
		got     []int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orderMu.Lock()
			next++
			q.Push(next)
			orderMu.Unlock()
			q.Drain(func(v int) { got = append(got, v) })
		}()
	}
	wg.Wait()
	q.Drain(func(v int) { got = append(got, v) })

	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, i+1, v)
	}
}

func TestPanickingCallbackReleasesQueue(t *testing.T) {
	var q dispatch.Queue[int]
	q.Push(1)
	require.Panics(t, func() {
		q.Drain(func(int) { panic("boom") })
	})

	q.Push(2)
	var got []int
	q.Drain(func(v int) { got = append(got, v) })
	require.Equal(t, []int{2}, got)
}
