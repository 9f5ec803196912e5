package bidding

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farebid/internal/metrics"
	"farebid/internal/types"
)

type memCache struct {
	items  map[string]Result
	getErr error
	setErr error
}

func newMemCache() *memCache { return &memCache{items: map[string]Result{}} }

func (c *memCache) Get(_ context.Context, key string) (Result, bool, error) {
	if c.getErr != nil {
		return Result{}, false, c.getErr
	}
	r, ok := c.items[key]
	return r, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, r Result) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.items[key] = r
	return nil
}

type memStore struct {
	saved []Decision
	err   error
}

func (s *memStore) Save(_ context.Context, d *Decision) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, *d)
	return nil
}

func (s *memStore) ListByOrder(_ context.Context, orderID types.ID, _ int) ([]Decision, error) {
	var out []Decision
	for _, d := range s.saved {
		if d.OrderID == orderID {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestService_CachesResult(t *testing.T) {
	scorer := &bidScorer{fn: linearDecay}
	cache := newMemCache()
	svc := NewService(NewOptimizer(scorer, DefaultParams()), "v1", cache, nil, metrics.New())

	first, err := svc.Optimize(context.Background(), order(400), Params{})
	require.NoError(t, err)
	second, err := svc.Optimize(context.Background(), order(400), Params{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, scorer.calls, "second call served from cache")
	assert.Len(t, cache.items, 1)

	_, err = svc.Optimize(context.Background(), order(400), Params{Steps: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, scorer.calls, "different params miss the cache")
}

func TestService_RecordsDecision(t *testing.T) {
	store := &memStore{}
	svc := NewService(NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams()), "v1", nil, store, nil)
	fixed := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Optimize(context.Background(), order(400), Params{})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)

	d := store.saved[0]
	assert.Equal(t, types.ID("o1"), d.OrderID)
	assert.Equal(t, "v1", d.ModelVersion)
	assert.Equal(t, res, d.Result)
	assert.Equal(t, DefaultSteps, d.Params.Steps)
	assert.Equal(t, fixed, d.CreatedAt)

	hist, err := svc.History(context.Background(), "o1", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestService_InfraFailuresAreNotFatal(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	store := &memStore{err: errors.New("pg down")}
	svc := NewService(NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams()), "v1", cache, store, metrics.New())

	res, err := svc.Optimize(context.Background(), order(400), Params{})
	require.NoError(t, err)
	assert.Greater(t, res.OptimalBid, 0.0)
}

func TestService_ErrorsAreNotCached(t *testing.T) {
	cache := newMemCache()
	store := &memStore{}
	scorer := &bidScorer{fn: func(float64) float64 { return 0.99 }}
	svc := NewService(NewOptimizer(scorer, DefaultParams()), "v1", cache, store, nil)

	_, err := svc.Optimize(context.Background(), order(100), Params{})
	assert.ErrorIs(t, err, ErrNoFeasibleBid)
	assert.Empty(t, cache.items)
	assert.Empty(t, store.saved)
}

func TestService_HistoryWithoutStore(t *testing.T) {
	svc := NewService(NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams()), "v1", nil, nil, nil)
	_, err := svc.History(context.Background(), "o1", 5)
	assert.ErrorIs(t, err, ErrStoreDisabled)
}

func TestCacheKey(t *testing.T) {
	a, err := CacheKey("v1", order(100), DefaultParams())
	require.NoError(t, err)
	b, err := CacheKey("v1", order(100), DefaultParams())
	require.NoError(t, err)
	c, err := CacheKey("v2", order(100), DefaultParams())
	require.NoError(t, err)
	d, err := CacheKey("v1", order(101), DefaultParams())
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "no_feasible_bid", resultLabel(ErrNoFeasibleBid))
	assert.Equal(t, "invalid_params", resultLabel(ErrInvalidParams))
	assert.Equal(t, "error", resultLabel(errors.New("x")))
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("FAREBID_TEST_REDIS"))
	if addr == "" {
		t.Skip("FAREBID_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	cache := NewRedisCache(rdb, time.Minute)
	key := "test-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { rdb.Del(ctx, cachePrefix+key) })

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := Result{OptimalBid: 150, Probability: 0.5, ExpectedIncome: 75, BasePrice: 100, Evaluated: 25, Feasible: 25}
	require.NoError(t, cache.Set(ctx, key, want))
	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_SaveAndList(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("FAREBID_TEST_DSN"))
	if dsn == "" {
		t.Skip("FAREBID_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewStore(db)
	require.NoError(t, store.EnsureSchema(ctx))

	orderID := types.ID("test-" + time.Now().Format("20060102150405.000000000"))
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM bid_decisions WHERE order_id = $1`, string(orderID))
	})

	svc := NewService(NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams()), "v1", nil, store, nil)
	o := order(400)
	o.OrderID = orderID
	res, err := svc.Optimize(ctx, o, Params{IncludeCandidates: true})
	require.NoError(t, err)

	hist, err := svc.History(ctx, orderID, 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, res.OptimalBid, hist[0].Result.OptimalBid)
	assert.Len(t, hist[0].Result.Candidates, res.Evaluated)
	assert.True(t, hist[0].Params.IncludeCandidates)
}
