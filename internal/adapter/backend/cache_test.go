package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// --- mock for cache tests ---

type countingSource struct {
	statesCalls    int
	citiesCalls    int
	analyticsCalls int
	cities         []string
	bundle         domain.Bundle
	err            error
}

func (m *countingSource) States(_ context.Context) ([]string, error) {
	m.statesCalls++
	return []string{"Texas"}, m.err
}

func (m *countingSource) Cities(_ context.Context, _ string) ([]string, error) {
	m.citiesCalls++
	return m.cities, m.err
}

func (m *countingSource) Analytics(_ context.Context, _ domain.FetchKey) (domain.Bundle, error) {
	m.analyticsCalls++
	return m.bundle, m.err
}

var austin = domain.FetchKey{State: "Texas", City: "Austin", Year: 2021}

func newCached(inner domain.DataSource, size int, clock clockwork.Clock) *CachedSource {
	return NewCachedSource(inner, size, time.Minute, clock, observability.NewMetricsForTesting())
}

// --- CachedSource tests ---

func TestCachedSource_AnalyticsCacheHit(t *testing.T) {
	inner := &countingSource{bundle: domain.Bundle{domain.BreakdownYears: {Labels: []string{"2021"}}}}
	cached := newCached(inner, 10, clockwork.NewFakeClock())

	b1, err := cached.Analytics(context.Background(), austin)
	require.NoError(t, err)
	b2, err := cached.Analytics(context.Background(), austin)
	require.NoError(t, err)

	assert.Equal(t, b1, b2)
	assert.Equal(t, 1, inner.analyticsCalls, "should only call inner once")
}

func TestCachedSource_DifferentKeysMiss(t *testing.T) {
	inner := &countingSource{bundle: domain.Bundle{domain.BreakdownYears: {}}}
	cached := newCached(inner, 10, clockwork.NewFakeClock())

	other := austin
	other.Month = 4
	_, _ = cached.Analytics(context.Background(), austin)
	_, _ = cached.Analytics(context.Background(), other)

	assert.Equal(t, 2, inner.analyticsCalls)
}

func TestCachedSource_StatesAndCitiesShareListCache(t *testing.T) {
	inner := &countingSource{cities: []string{"Austin", "Dallas"}}
	cached := newCached(inner, 10, clockwork.NewFakeClock())

	for range 3 {
		_, err := cached.States(context.Background())
		require.NoError(t, err)
		cities, err := cached.Cities(context.Background(), "Texas")
		require.NoError(t, err)
		assert.Equal(t, []string{"Austin", "Dallas"}, cities)
	}

	assert.Equal(t, 1, inner.statesCalls)
	assert.Equal(t, 1, inner.citiesCalls)
}

func TestCachedSource_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingSource{}
	cached := newCached(inner, 10, clockwork.NewFakeClock())

	_, _ = cached.Cities(context.Background(), "Wyoming")
	_, _ = cached.Cities(context.Background(), "Wyoming")
	assert.Equal(t, 2, inner.citiesCalls)

	inner.err = errors.New("boom")
	_, err := cached.Analytics(context.Background(), austin)
	require.Error(t, err)
	_, err = cached.Analytics(context.Background(), austin)
	require.Error(t, err)
	assert.Equal(t, 2, inner.analyticsCalls)
}

func TestCachedSource_EntriesExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &countingSource{bundle: domain.Bundle{domain.BreakdownYears: {}}}
	cached := newCached(inner, 10, clock)

	_, _ = cached.Analytics(context.Background(), austin)
	clock.Advance(59 * time.Second)
	_, _ = cached.Analytics(context.Background(), austin)
	assert.Equal(t, 1, inner.analyticsCalls)

	clock.Advance(time.Second)
	_, _ = cached.Analytics(context.Background(), austin)
	assert.Equal(t, 2, inner.analyticsCalls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3, time.Minute, clockwork.NewFakeClock())

	c.put("a", "A")
	c.put("b", "B")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2, time.Minute, clockwork.NewFakeClock())

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[string](2, time.Minute, clockwork.NewFakeClock())

	c.put("a", "A")
	c.put("b", "B")

	// Access "a" to promote it
	c.get("a")

	// Insert "c": should evict "b" (LRU), not "a"
	c.put("c", "C")

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExistingRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLRUCache[string](2, time.Minute, clock)

	c.put("a", "A1")
	clock.Advance(45 * time.Second)
	c.put("a", "A2")
	clock.Advance(45 * time.Second)

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result)
}

func TestLRUCache_ExpiredEntryRemoved(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLRUCache[string](2, time.Second, clock)

	c.put("a", "A")
	clock.Advance(time.Second)

	_, ok := c.get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())
}
