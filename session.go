package solgate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/event"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/ports"
)

// DefaultFollowUpDelay is how long after the first sign-in of a run the
// identity is fetched again, to pick up state such as the balance that the
// identity service only reports shortly after a session is created.
const DefaultFollowUpDelay = 4 * time.Second

// round is one identity verification in flight. A silent round keeps the
// previous session on failure; it stops being silent as soon as a Refresh
// caller joins it.
type round struct {
	done    chan struct{}
	result  core.AuthSession
	silent  bool
	waiters int
}

type listener struct {
	fn     func(core.AuthSession)
	active atomic.Bool
}

// SessionCacheOption configures a SessionCache
type SessionCacheOption func(*SessionCache)

// WithFollowUpDelay overrides DefaultFollowUpDelay
func WithFollowUpDelay(d time.Duration) SessionCacheOption {
	return func(c *SessionCache) {
		c.followUpDelay = d
	}
}

// SessionCache owns the process-wide authentication session. At most one
// identity check runs at a time; concurrent Refresh calls share it.
type SessionCache struct {
	fetcher       ports.IdentityFetcher
	logger        watermill.LoggerAdapter
	followUpDelay time.Duration
	schedule      func(d time.Duration, f func())

	mu                sync.Mutex
	session           core.AuthSession
	inflight          *round
	listeners         []*listener
	followUpScheduled bool

	// transitions waiting for delivery, in the order they were applied
	queue      []core.AuthSession
	delivering bool

	feed event.Feed
}

// NewSessionCache creates a cache in the pending state. Construct it once per process.
func NewSessionCache(fetcher ports.IdentityFetcher, logger watermill.LoggerAdapter, opts ...SessionCacheOption) *SessionCache {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	c := &SessionCache{
		fetcher:       fetcher,
		logger:        logger.With(watermill.LogFields{"component": "session_cache"}),
		followUpDelay: DefaultFollowUpDelay,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		session: core.AuthSession{Status: core.StatusPending},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot returns the current session
func (c *SessionCache) Snapshot() core.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// Refresh checks the identity again. If a check is already in flight the
// caller waits for that one instead of starting another. When ctx is done
// before the check completes the current snapshot is returned; the check
// itself keeps running.
func (c *SessionCache) Refresh(ctx context.Context) core.AuthSession {
	r, started := c.acquire(false)
	if started {
		c.apply(nil, func(prev core.AuthSession) (core.AuthSession, bool) {
			return core.AuthSession{Identity: prev.Identity, Status: core.StatusPending}, true
		})
		go c.run(context.WithoutCancel(ctx), r)
	}

	select {
	case <-r.done:
		return r.result
	case <-ctx.Done():
		return c.Snapshot()
	}
}

// SetAuthenticated records a freshly verified identity
func (c *SessionCache) SetAuthenticated(identity core.Identity) {
	c.apply(nil, func(core.AuthSession) (core.AuthSession, bool) {
		return core.AuthSession{Identity: &identity, Status: core.StatusAuthenticated}, true
	})
}

// SetUnauthenticated drops the identity, e.g. after signing out
func (c *SessionCache) SetUnauthenticated() {
	c.apply(nil, func(core.AuthSession) (core.AuthSession, bool) {
		return core.AuthSession{Status: core.StatusUnauthenticated}, true
	})
}

// Subscribe registers fn to be called after every session transition.
// The returned function removes it and may be called from inside fn.
func (c *SessionCache) Subscribe(fn func(core.AuthSession)) (unsubscribe func()) {
	l := &listener{fn: fn}
	l.active.Store(true)

	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()

	return func() {
		if !l.active.Swap(false) {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		remaining := make([]*listener, 0, len(c.listeners))
		for _, other := range c.listeners {
			if other != l {
				remaining = append(remaining, other)
			}
		}
		c.listeners = remaining
	}
}

// Watch delivers every session transition to ch. Sends block until ch
// accepts, so ch should be buffered and drained.
func (c *SessionCache) Watch(ch chan<- core.AuthSession) event.Subscription {
	return c.feed.Subscribe(ch)
}

// acquire returns the in-flight round, starting a new one if there is none
func (c *SessionCache) acquire(silent bool) (*round, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil {
		c.inflight.waiters++
		if !silent {
			c.inflight.silent = false
		}
		return c.inflight, false
	}

	r := &round{done: make(chan struct{}), silent: silent}
	c.inflight = r
	return r, true
}

func (c *SessionCache) run(ctx context.Context, r *round) {
	identity, err := c.fetcher.WhoAmI(ctx)
	if err != nil {
		c.logger.Error("Identity fetch failed", err, nil)
	}

	c.apply(r, func(prev core.AuthSession) (core.AuthSession, bool) {
		switch {
		case r.silent && (err != nil || identity == nil):
			return prev, false
		case err != nil:
			return core.AuthSession{Status: core.StatusUnauthenticated, Err: err}, true
		case identity == nil:
			return core.AuthSession{Status: core.StatusUnauthenticated}, true
		default:
			return core.AuthSession{Identity: identity, Status: core.StatusAuthenticated}, true
		}
	})
}

// apply is the only place the session is written. When r is set the round
// is completed and cleared before listeners are notified, so a listener may
// start a new round right away. Transitions reach listeners in the order
// they were written, whichever goroutine applied them.
func (c *SessionCache) apply(r *round, update func(prev core.AuthSession) (core.AuthSession, bool)) {
	c.mu.Lock()
	prev := c.session
	next, notify := update(prev)
	c.session = next

	waiters := 0
	if r != nil {
		r.result = next
		waiters = r.waiters
		if c.inflight == r {
			c.inflight = nil
		}
	}

	followUp := next.Status == core.StatusAuthenticated &&
		prev.Status != core.StatusAuthenticated &&
		!c.followUpScheduled
	if followUp {
		c.followUpScheduled = true
	}

	drain := false
	if notify {
		c.queue = append(c.queue, next)
		if !c.delivering {
			c.delivering = true
			drain = true
		}
	}
	c.mu.Unlock()

	if r != nil {
		close(r.done)
		c.logger.Trace("Identity round finished", watermill.LogFields{"joined": waiters})
	}

	if notify {
		c.logger.Debug("Session transition", watermill.LogFields{
			"from": string(prev.Status),
			"to":   string(next.Status),
		})
	}
	if drain {
		c.deliver()
	}

	if followUp {
		c.schedule(c.followUpDelay, c.followUp)
	}
}

// deliver hands queued transitions to listeners one at a time. Only one
// goroutine delivers at once; transitions applied meanwhile, including from
// inside a listener, are queued and picked up by the same loop.
func (c *SessionCache) deliver() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		listeners := c.listeners
		c.mu.Unlock()

		for _, l := range listeners {
			if l.active.Load() {
				l.fn(next)
			}
		}
		c.feed.Send(next)
	}
}

// followUp re-fetches the identity once without passing through pending.
// A failed or unauthenticated answer leaves the session as it is.
func (c *SessionCache) followUp() {
	r, started := c.acquire(true)
	if !started {
		return
	}
	c.run(context.Background(), r)
}
