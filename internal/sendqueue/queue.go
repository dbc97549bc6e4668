// Package sendqueue paces outbound messages. Conversational logic fires
// sends at it and moves on; the queue worker orders them by priority
// tier and enforces a minimum gap per recipient so the bot never
// machine-guns a chat.
package sendqueue

import (
	"context"
	"sync"
	"time"

	"github.com/vfbarros/zapflow/internal/types"

	"github.com/vfbarros/zapflow/internal/logging"
)

// Priority orders outbound messages. Lower value drains first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow

	tiers = 3
)

const maxAttempts = 3

// Config controls pacing.
type Config struct {
	// MinGap is the minimum delay between two sends to the same
	// recipient. Zero disables pacing.
	MinGap time.Duration
}

type item struct {
	recipient string
	content   *types.Outbound
	attempts  int
}

// Queue is the outbound send queue. Construct with New, start the worker
// with Run, enqueue from anywhere.
type Queue struct {
	transport types.Transport
	cfg       Config

	mu       sync.Mutex
	pending  [tiers][]*item
	lastSend map[string]time.Time

	notify chan struct{}
	done   chan struct{}
}

// New creates a queue draining into the given transport.
func New(transport types.Transport, cfg Config) *Queue {
	return &Queue{
		transport: transport,
		cfg:       cfg,
		lastSend:  make(map[string]time.Time),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Enqueue queues a message at normal priority. Satisfies the router's
// Outbox interface.
func (q *Queue) Enqueue(recipient string, content *types.Outbound) {
	q.EnqueueWithPriority(recipient, content, PriorityNormal)
}

// EnqueueWithPriority queues a message in a specific tier.
func (q *Queue) EnqueueWithPriority(recipient string, content *types.Outbound, prio Priority) {
	if prio < PriorityHigh || prio > PriorityLow {
		prio = PriorityNormal
	}

	q.mu.Lock()
	q.pending[prio] = append(q.pending[prio], &item{recipient: recipient, content: content})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued messages across all tiers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, tier := range q.pending {
		n += len(tier)
	}
	return n
}

// pop removes the oldest item from the highest non-empty tier.
func (q *Queue) pop() *item {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p := range q.pending {
		if len(q.pending[p]) > 0 {
			it := q.pending[p][0]
			q.pending[p] = q.pending[p][1:]
			return it
		}
	}
	return nil
}

// requeue puts a failed item at the back of the low tier for another try.
func (q *Queue) requeue(it *item) {
	q.mu.Lock()
	q.pending[PriorityLow] = append(q.pending[PriorityLow], it)
	q.mu.Unlock()
}

// Run drains the queue until ctx is cancelled. One worker; sends to the
// same recipient are spaced by at least MinGap.
func (q *Queue) Run(ctx context.Context) {
	logging.L_info("sendqueue: worker started", "minGap", q.cfg.MinGap)
	defer close(q.done)

	for {
		it := q.pop()
		if it == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}

		if wait := q.gapRemaining(it.recipient); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		q.deliver(ctx, it)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Wait blocks until the worker has exited.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) gapRemaining(recipient string) time.Duration {
	if q.cfg.MinGap <= 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	last, ok := q.lastSend[recipient]
	if !ok {
		return 0
	}
	elapsed := time.Since(last)
	if elapsed >= q.cfg.MinGap {
		return 0
	}
	return q.cfg.MinGap - elapsed
}

func (q *Queue) deliver(ctx context.Context, it *item) {
	it.attempts++
	err := q.transport.SendMessage(ctx, it.recipient, it.content)

	q.mu.Lock()
	q.lastSend[it.recipient] = time.Now()
	q.mu.Unlock()

	if err == nil {
		return
	}

	// Send failures never reach the router; retry best-effort, then drop.
	if it.attempts < maxAttempts {
		logging.L_warn("sendqueue: send failed, will retry",
			"recipient", it.recipient, "attempt", it.attempts, "error", err)
		q.requeue(it)
		return
	}
	logging.L_error("sendqueue: send failed, dropping",
		"recipient", it.recipient, "attempts", it.attempts, "error", err)
}
