package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery/internal/models"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) CacheResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[result]++
}

func (r *countingRecorder) get(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[result]
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func samplePage() *models.ItemPage {
	return &models.ItemPage{
		TotalCount: 1,
		Items: []models.GroceryItem{
			{ID: 1, Name: "Milk", Price: decimal.RequireFromString("2.49"), Quantity: 7},
		},
	}
}

func TestAvailableCachesPage(t *testing.T) {
	_, client := setupRedis(t)
	rec := &countingRecorder{}
	c := NewRedisCatalog(client, time.Minute, WithRecorder(rec))
	ctx := context.Background()

	var loads int
	load := func(context.Context) (*models.ItemPage, error) {
		loads++
		return samplePage(), nil
	}

	first, err := c.Available(ctx, "q=&page=1", load)
	require.NoError(t, err)
	second, err := c.Available(ctx, "q=&page=1", load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first.TotalCount, second.TotalCount)
	require.Len(t, second.Items, 1)
	assert.True(t, second.Items[0].Price.Equal(decimal.RequireFromString("2.49")))
	assert.Equal(t, 1, rec.get(ResultHit))
	assert.Equal(t, 1, rec.get(ResultMiss))

	_, err = c.Available(ctx, "q=milk&page=1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestInvalidateDropsCachedPages(t *testing.T) {
	_, client := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute)
	ctx := context.Background()

	var loads int
	load := func(context.Context) (*models.ItemPage, error) {
		loads++
		return samplePage(), nil
	}

	_, err := c.Available(ctx, "k", load)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Available(ctx, "k", load)
	require.NoError(t, err)

	assert.Equal(t, 2, loads)
}

func TestPagesExpire(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewRedisCatalog(client, 10*time.Second)
	ctx := context.Background()

	var loads int
	load := func(context.Context) (*models.ItemPage, error) {
		loads++
		return samplePage(), nil
	}

	_, err := c.Available(ctx, "k", load)
	require.NoError(t, err)
	mr.FastForward(11 * time.Second)
	_, err = c.Available(ctx, "k", load)
	require.NoError(t, err)

	assert.Equal(t, 2, loads)
}

func TestLoaderErrorIsNotCached(t *testing.T) {
	_, client := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute)
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := c.Available(ctx, "k", func(context.Context) (*models.ItemPage, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	page, err := c.Available(ctx, "k", func(context.Context) (*models.ItemPage, error) { return samplePage(), nil })
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
}

func TestRedisOutageFallsBackToLoader(t *testing.T) {
	mr, client := setupRedis(t)
	rec := &countingRecorder{}
	c := NewRedisCatalog(client, time.Minute, WithRecorder(rec))
	mr.Close()

	page, err := c.Available(context.Background(), "k", func(context.Context) (*models.ItemPage, error) {
		return samplePage(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 1, rec.get(ResultError))
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	_, client := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute)

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (*models.ItemPage, error) {
		loads.Add(1)
		<-release
		return samplePage(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := c.Available(context.Background(), "hot", load)
			assert.NoError(t, err)
			assert.Equal(t, 1, page.TotalCount)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestSharedLoadOutlivesCancelledCaller(t *testing.T) {
	_, client := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	var loads atomic.Int32
	load := func(ctx context.Context) (*models.ItemPage, error) {
		if loads.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return samplePage(), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		page, err := c.Available(firstCtx, "hot", load)
		assert.NoError(t, err)
		assert.Equal(t, 1, page.TotalCount)
	}()
	<-started

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := c.Available(context.Background(), "hot", load)
			assert.NoError(t, err)
			assert.Equal(t, 1, page.TotalCount)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestSharedLoadIsBounded(t *testing.T) {
	_, client := setupRedis(t)
	c := NewRedisCatalog(client, time.Minute, WithLoadTimeout(20*time.Millisecond))

	load := func(ctx context.Context) (*models.ItemPage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err := c.Available(context.Background(), "slow", load)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Dial(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNopAlwaysLoads(t *testing.T) {
	var loads int
	load := func(context.Context) (*models.ItemPage, error) {
		loads++
		return samplePage(), nil
	}
	_, _ = Nop{}.Available(context.Background(), "k", load)
	_, _ = Nop{}.Available(context.Background(), "k", load)
	assert.Equal(t, 2, loads)
	assert.NoError(t, Nop{}.Invalidate(context.Background()))
}
