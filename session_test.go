package solgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/solgate/core"
)

type recorder struct {
	mu       sync.Mutex
	statuses []core.Status
}

func (r *recorder) record(s core.AuthSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s.Status)
}

func (r *recorder) get() []core.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Status(nil), r.statuses...)
}

func waiters(c *SessionCache) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return -1
	}
	return c.inflight.waiters
}

func TestSessionCacheStartsPending(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{}, nil)
	assert.Equal(t, core.StatusPending, c.Snapshot().Status)
	assert.Nil(t, c.Snapshot().Identity)
}

func TestSessionCacheCoalescesRefresh(t *testing.T) {
	fetcher := &fakeFetcher{
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
		identity: &core.Identity{Address: "Addr111"},
	}
	c := NewSessionCache(fetcher, nil, noFollowUp)
	rec := &recorder{}
	c.Subscribe(rec.record)

	const callers = 8
	results := make(chan core.AuthSession, callers)
	go func() { results <- c.Refresh(context.Background()) }()
	<-fetcher.started

	for i := 1; i < callers; i++ {
		go func() { results <- c.Refresh(context.Background()) }()
	}
	require.Eventually(t, func() bool { return waiters(c) == callers-1 }, time.Second, time.Millisecond)

	close(fetcher.release)
	for i := 0; i < callers; i++ {
		s := <-results
		assert.Equal(t, core.StatusAuthenticated, s.Status)
		require.NotNil(t, s.Identity)
		assert.Equal(t, "Addr111", s.Identity.Address)
	}

	assert.Equal(t, int32(1), fetcher.calls.Load())
	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []core.Status{core.StatusPending, core.StatusAuthenticated}, rec.get())
}

func TestSessionCacheFetchErrorIsUnauthenticated(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewSessionCache(&fakeFetcher{err: boom}, nil)

	s := c.Refresh(context.Background())
	assert.Equal(t, core.StatusUnauthenticated, s.Status)
	assert.Nil(t, s.Identity)
	assert.ErrorIs(t, s.Err, boom)
}

func TestSessionCacheNotAuthenticated(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{}, nil)

	s := c.Refresh(context.Background())
	assert.Equal(t, core.StatusUnauthenticated, s.Status)
	assert.NoError(t, s.Err)
}

func TestSessionCacheClearsRoundBeforeNotifying(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{}, nil)

	cleared := make(chan bool, 1)
	c.Subscribe(func(s core.AuthSession) {
		if s.Status != core.StatusUnauthenticated {
			return
		}
		c.mu.Lock()
		cleared <- c.inflight == nil
		c.mu.Unlock()
	})

	c.Refresh(context.Background())
	select {
	case ok := <-cleared:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("listener not notified")
	}
}

func TestSessionCacheListenerCanStartNewRound(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := NewSessionCache(fetcher, nil)

	var once sync.Once
	second := make(chan core.AuthSession, 1)
	c.Subscribe(func(s core.AuthSession) {
		if s.Status == core.StatusUnauthenticated {
			once.Do(func() {
				go func() { second <- c.Refresh(context.Background()) }()
			})
		}
	})

	c.Refresh(context.Background())
	select {
	case s := <-second:
		assert.Equal(t, core.StatusUnauthenticated, s.Status)
	case <-time.After(time.Second):
		t.Fatal("second round did not complete")
	}
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestSessionCacheUnsubscribeDuringCallback(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{}, nil, noFollowUp)

	var calls [3]int
	var unsubscribeFirst func()
	unsubscribeFirst = c.Subscribe(func(core.AuthSession) {
		calls[0]++
		unsubscribeFirst()
	})
	c.Subscribe(func(core.AuthSession) { calls[1]++ })
	unsubscribeLast := c.Subscribe(func(core.AuthSession) { calls[2]++ })

	c.SetAuthenticated(core.Identity{Address: "a"})
	assert.Equal(t, [3]int{1, 1, 1}, calls)

	c.SetUnauthenticated()
	assert.Equal(t, [3]int{1, 2, 2}, calls)

	unsubscribeLast()
	unsubscribeLast()
	c.SetUnauthenticated()
	assert.Equal(t, [3]int{1, 3, 2}, calls)
}

func TestSessionCacheSkipsListenerRemovedMidDelivery(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{}, nil, noFollowUp)

	var secondCalls int
	var unsubscribeSecond func()
	c.Subscribe(func(core.AuthSession) { unsubscribeSecond() })
	unsubscribeSecond = c.Subscribe(func(core.AuthSession) { secondCalls++ })

	c.SetUnauthenticated()
	assert.Zero(t, secondCalls)
}

func TestSessionCacheWatch(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{identity: &core.Identity{Address: "a"}}, nil, noFollowUp)

	ch := make(chan core.AuthSession, 4)
	sub := c.Watch(ch)
	defer sub.Unsubscribe()

	c.Refresh(context.Background())
	assert.Equal(t, core.StatusPending, (<-ch).Status)
	assert.Equal(t, core.StatusAuthenticated, (<-ch).Status)
}

func TestSessionCacheRefreshHonoursContext(t *testing.T) {
	fetcher := &fakeFetcher{release: make(chan struct{}), identity: &core.Identity{Address: "a"}}
	c := NewSessionCache(fetcher, nil, noFollowUp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := c.Refresh(ctx)
	assert.Equal(t, core.StatusPending, s.Status)

	close(fetcher.release)
	require.Eventually(t, func() bool {
		return c.Snapshot().Status == core.StatusAuthenticated
	}, time.Second, time.Millisecond)
}

func TestSessionCacheSchedulesOneFollowUpPerRun(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("unreachable")}
	c := NewSessionCache(fetcher, nil, WithFollowUpDelay(3*time.Second))

	var delays []time.Duration
	var followUps []func()
	c.schedule = func(d time.Duration, f func()) {
		delays = append(delays, d)
		followUps = append(followUps, f)
	}

	c.SetAuthenticated(core.Identity{Address: "a"})
	require.Len(t, followUps, 1)
	assert.Equal(t, 3*time.Second, delays[0])

	// a second cold start within the same run schedules nothing
	c.SetUnauthenticated()
	c.SetAuthenticated(core.Identity{Address: "a"})
	assert.Len(t, followUps, 1)

	rec := &recorder{}
	c.Subscribe(rec.record)

	// a failing follow-up leaves the session alone
	followUps[0]()
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, core.StatusAuthenticated, c.Snapshot().Status)
	assert.Empty(t, rec.get())
}

func TestSessionCacheFollowUpPicksUpBalance(t *testing.T) {
	fetcher := &fakeFetcher{identity: &core.Identity{Address: "a", Balance: decimal.RequireFromString("1.5")}}
	c := NewSessionCache(fetcher, nil)

	var followUp func()
	c.schedule = func(_ time.Duration, f func()) { followUp = f }

	c.SetAuthenticated(core.Identity{Address: "a"})
	require.NotNil(t, followUp)

	rec := &recorder{}
	c.Subscribe(rec.record)
	followUp()

	s := c.Snapshot()
	assert.Equal(t, core.StatusAuthenticated, s.Status)
	assert.True(t, s.Identity.Balance.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, []core.Status{core.StatusAuthenticated}, rec.get())
}

func TestSessionCacheRefreshIntoAuthenticatedSchedulesFollowUp(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{identity: &core.Identity{Address: "a"}}, nil)

	scheduled := 0
	c.schedule = func(time.Duration, func()) { scheduled++ }

	c.Refresh(context.Background())
	c.Refresh(context.Background())
	assert.Equal(t, 1, scheduled)
}

func TestSessionCacheRefreshJoiningFollowUpReportsFetchResult(t *testing.T) {
	fetcher := &fakeFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewSessionCache(fetcher, nil)

	var followUp func()
	c.schedule = func(_ time.Duration, f func()) { followUp = f }

	c.SetAuthenticated(core.Identity{Address: "a"})
	require.NotNil(t, followUp)

	go followUp()
	<-fetcher.started

	result := make(chan core.AuthSession, 1)
	go func() { result <- c.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return waiters(c) == 1 }, time.Second, time.Millisecond)

	// the identity service no longer knows the session
	close(fetcher.release)

	s := <-result
	assert.Equal(t, core.StatusUnauthenticated, s.Status)
	assert.Nil(t, s.Identity)
	assert.Equal(t, core.StatusUnauthenticated, c.Snapshot().Status)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestSessionCacheDeliversTransitionsInWriteOrder(t *testing.T) {
	c := NewSessionCache(&fakeFetcher{}, nil, noFollowUp)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	rec := &recorder{}
	c.Subscribe(func(s core.AuthSession) {
		rec.record(s)
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	go c.SetAuthenticated(core.Identity{Address: "a"})
	<-entered

	// written while the first transition is still being delivered
	c.SetUnauthenticated()
	assert.Equal(t, core.StatusUnauthenticated, c.Snapshot().Status)

	close(release)
	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []core.Status{core.StatusAuthenticated, core.StatusUnauthenticated}, rec.get())
}
