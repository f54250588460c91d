package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerMutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Acquire(ctx, "lock:auction_asset:1:bid", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock.Release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 同key临界区内始终只有一个持有者
	assert.Equal(t, 1, max)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	u1, err := locker.Acquire(ctx, "lock:auction_asset:1:bid", time.Second)
	require.NoError(t, err)
	defer u1.Release()

	// 不同key互不阻塞
	acquired := make(chan struct{})
	go func() {
		u2, err := locker.Acquire(ctx, "lock:auction_asset:2:bid", time.Second)
		assert.NoError(t, err)
		u2.Release()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("不同key的锁不应相互阻塞")
	}
}
