package sync

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/pkg/logger"
)

const writeTimeout = 10 * time.Second

// Store is the remote write surface the coordinator reconciles against.
// Writes are idempotent upsert-by-content, so cross-call ordering does not
// matter.
type Store interface {
	SaveMessage(ctx context.Context, m chat.Message) error
}

// Coordinator persists finalized messages to the remote store off the
// rendering path. Enqueue never blocks the caller. The policy is explicitly
// at-most-once and best-effort: each message gets a single write attempt and
// failures are logged and dropped; the server copy is simply absent until
// the next history hydration.
type Coordinator struct {
	store   Store
	queue   chan chat.Message
	limiter *rate.Limiter
	done    chan struct{}
	stopped chan struct{}
}

// NewCoordinator starts the single reconciliation worker. queueSize bounds
// the backlog; writesPerSecond paces remote writes.
func NewCoordinator(store Store, queueSize int, writesPerSecond float64) *Coordinator {
	if queueSize <= 0 {
		queueSize = 64
	}
	if writesPerSecond <= 0 {
		writesPerSecond = 8
	}

	c := &Coordinator{
		store:   store,
		queue:   make(chan chat.Message, queueSize),
		limiter: rate.NewLimiter(rate.Limit(writesPerSecond), 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.run()
	return c
}

// Enqueue hands a finalized message to the worker, fire-and-forget. When the
// backlog is full the message is dropped and the drop is logged.
func (c *Coordinator) Enqueue(m chat.Message) {
	select {
	case c.queue <- m:
	default:
		logger.Warnf("[sync] queue full, dropping %s message %s", m.Role, m.ID)
	}
}

// Close stops the worker after draining whatever is already queued.
func (c *Coordinator) Close() {
	close(c.done)
	<-c.stopped
}

func (c *Coordinator) run() {
	defer close(c.stopped)

	for {
		select {
		case <-c.done:
			for {
				select {
				case m := <-c.queue:
					c.write(m)
				default:
					return
				}
			}
		case m := <-c.queue:
			c.write(m)
		}
	}
}

func (c *Coordinator) write(m chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		logger.Warnf("[sync] gave up waiting to persist %s message %s: %v", m.Role, m.ID, err)
		return
	}

	if err := c.store.SaveMessage(ctx, m); err != nil {
		logger.Errorf("[sync] failed to persist %s message %s: %v", m.Role, m.ID, err)
	}
}
