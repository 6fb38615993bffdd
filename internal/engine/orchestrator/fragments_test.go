package orchestrator_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lbliii/bengal/internal/engine/orchestrator"
)

func TestFragmentCacheComputesOncePerKey(t *testing.T) {
	c := orchestrator.NewFragmentCache()

	computes := 0
	compute := func() ([]byte, error) {
		computes++
		return []byte("<nav/>"), nil
	}

	for range 3 {
		body, err := c.GetOrCompute("key-a", compute)
		require.NoError(t, err)
		require.Equal(t, "<nav/>", string(body))
	}

	require.Equal(t, 1, computes)
	hits, misses := c.Stats()
	require.Equal(t, 2, hits)
	require.Equal(t, 1, misses)
}

func TestFragmentCacheDistinctKeys(t *testing.T) {
	c := orchestrator.NewFragmentCache()

	_, err := c.GetOrCompute("key-a", func() ([]byte, error) { return []byte("a"), nil })
	require.NoError(t, err)
	body, err := c.GetOrCompute("key-b", func() ([]byte, error) { return []byte("b"), nil })
	require.NoError(t, err)
	require.Equal(t, "b", string(body))

	_, misses := c.Stats()
	require.Equal(t, 2, misses)
}

func TestFragmentCacheDoesNotCacheErrors(t *testing.T) {
	c := orchestrator.NewFragmentCache()

	boom := errors.New("render exploded")
	_, err := c.GetOrCompute("key-a", func() ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	body, err := c.GetOrCompute("key-a", func() ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestFragmentCacheConcurrentAccess(t *testing.T) {
	c := orchestrator.NewFragmentCache()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := c.GetOrCompute("shared", func() ([]byte, error) {
				return []byte("once"), nil
			})
			require.NoError(t, err)
			require.Equal(t, "once", string(body))
		}()
	}
	wg.Wait()

	_, misses := c.Stats()
	require.Equal(t, 1, misses)
}
