// Package coordinator implements the response coordinator: it assigns
// request IDs, maintains a bounded pending-requests table, and lets a
// synchronous caller block on an asynchronous pipeline's eventual
// result. The pending table is backed by github.com/patrickmn/go-cache
// so the cleanup-interval config knob has a real consumer via the
// cache's janitor and OnEvicted hook.
package coordinator

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	xerrors "github.com/elinsky/Intern-Trading-Game-sub002/pkg/errors"
)

// Status is the lifecycle state of a pending request.
type Status string

const (
	Pending  Status = "pending"
	Complete Status = "complete"
	TimedOut Status = "timed_out"
)

// Registration is returned by Register.
type Registration struct {
	RequestID string
	Status    Status
}

// Result is whatever the pipeline eventually hands back for a request;
// the coordinator treats it opaquely.
type Result struct {
	Status    Status
	ErrorCode string
	Payload   interface{}
}

// pendingEntry is the cache value: a one-shot completion signal plus a
// slot the first notifier writes its result into before closing done.
type pendingEntry struct {
	teamID string
	done   chan struct{}

	mu       sync.Mutex
	notified bool
	result   Result
}

// Coordinator maintains the bounded pending-requests table and
// signals completion to blocked waiters.
type Coordinator struct {
	mu      sync.Mutex
	pending *cache.Cache
	count   int
	maxSize int

	defaultTimeout time.Duration
	shuttingDown   bool

	logger *zap.Logger
}

// New constructs a Coordinator. maxPending bounds concurrent
// registrations; defaultTimeout is used when WaitForCompletion is
// called with a zero timeout; cleanupInterval drives go-cache's
// janitor sweep, which expires entries no one ever collected.
func New(maxPending int, defaultTimeout, cleanupInterval time.Duration, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		pending:        cache.New(defaultTimeout, cleanupInterval),
		maxSize:        maxPending,
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
	c.pending.OnEvicted(func(requestID string, v interface{}) {
		entry := v.(*pendingEntry)
		entry.mu.Lock()
		alreadyNotified := entry.notified
		if !alreadyNotified {
			entry.notified = true
			entry.result = Result{Status: TimedOut, ErrorCode: string(xerrors.Timeout)}
		}
		entry.mu.Unlock()
		if !alreadyNotified {
			close(entry.done)
		}
		c.mu.Lock()
		c.count--
		c.mu.Unlock()
		logger.Debug("pending request evicted", zap.String("request_id", requestID))
	})
	return c
}

// Register assigns a new request ID and reserves a pending-table slot
// for teamID. The capacity check and the insertion happen under the
// same lock, so no two concurrent Register calls can both observe
// free capacity and both succeed past it.
func (c *Coordinator) Register(teamID string) (Registration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shuttingDown {
		return Registration{}, xerrors.New(xerrors.ServiceShutdown, "coordinator is shutting down")
	}
	if c.count >= c.maxSize {
		return Registration{}, xerrors.New(xerrors.ServiceOverloaded, "pending request table is at capacity")
	}

	requestID := ksuid.New().String()
	entry := &pendingEntry{teamID: teamID, done: make(chan struct{})}
	c.pending.Set(requestID, entry, cache.DefaultExpiration)
	c.count++

	return Registration{RequestID: requestID, Status: Pending}, nil
}

// NotifyCompletion records result against requestID and wakes its
// waiter. It is idempotent: the first call wins; later calls for the
// same requestID return false and have no effect.
func (c *Coordinator) NotifyCompletion(requestID string, result Result) bool {
	v, ok := c.pending.Get(requestID)
	if !ok {
		return false
	}
	entry := v.(*pendingEntry)

	entry.mu.Lock()
	if entry.notified {
		entry.mu.Unlock()
		return false
	}
	entry.notified = true
	result.Status = Complete
	entry.result = result
	entry.mu.Unlock()

	close(entry.done)
	return true
}

// WaitForCompletion blocks until requestID completes or timeout
// elapses, whichever first. On timeout it returns a TIMEOUT result and
// removes the entry; in-flight pipeline work is not cancelled. On
// success the entry is removed after this call reads it.
func (c *Coordinator) WaitForCompletion(requestID string, timeout time.Duration) Result {
	v, ok := c.pending.Get(requestID)
	if !ok {
		return Result{Status: TimedOut, ErrorCode: string(xerrors.Timeout)}
	}
	entry := v.(*pendingEntry)

	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	select {
	case <-entry.done:
		entry.mu.Lock()
		result := entry.result
		entry.mu.Unlock()
		c.remove(requestID)
		return result
	case <-time.After(timeout):
		entry.mu.Lock()
		alreadyNotified := entry.notified
		if !alreadyNotified {
			entry.notified = true
		}
		entry.mu.Unlock()
		c.remove(requestID)
		if alreadyNotified {
			entry.mu.Lock()
			result := entry.result
			entry.mu.Unlock()
			return result
		}
		return Result{Status: TimedOut, ErrorCode: string(xerrors.Timeout)}
	}
}

// remove deletes requestID from the pending table. go-cache invokes
// OnEvicted for every removal path — explicit Delete, janitor sweep,
// and Shutdown's direct map walk excepted — so the count decrement
// lives solely in the OnEvicted callback to avoid double-counting.
func (c *Coordinator) remove(requestID string) {
	c.pending.Delete(requestID)
}

// Shutdown transitions the coordinator into a draining state: new
// registrations are rejected and every outstanding waiter is unblocked
// with a SERVICE_SHUTDOWN result.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.shuttingDown = true
	items := c.pending.Items()
	c.mu.Unlock()

	for requestID, item := range items {
		entry := item.Object.(*pendingEntry)
		entry.mu.Lock()
		alreadyNotified := entry.notified
		if !alreadyNotified {
			entry.notified = true
			entry.result = Result{Status: TimedOut, ErrorCode: string(xerrors.ServiceShutdown)}
		}
		entry.mu.Unlock()
		if !alreadyNotified {
			close(entry.done)
		}
		c.logger.Debug("pending request unblocked by shutdown", zap.String("request_id", requestID))
	}
}
