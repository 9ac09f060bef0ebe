package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/kozaktomas/rollcall/internal/attendance"
)

const queueSize = 16

var (
	// ErrQueueFull is returned when the sender has fallen too far behind.
	ErrQueueFull = errors.New("notification queue is full")
	// ErrQueueClosed is returned by Notify after Close.
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Queue decouples round cadence from delivery. Notify enqueues a roster and
// returns at once; Run waits out the pre-send delay and delivers each roster
// in enqueue order. Delivery failures are logged and dropped.
type Queue struct {
	sender      Sender
	destination string
	tpl         Template
	delay       time.Duration
	clock       clock.Clock

	mu     sync.Mutex
	closed bool
	jobs   chan attendance.Summary

	// OnSent, if set, is called after each delivery attempt.
	OnSent func(s attendance.Summary, err error)
}

// NewQueue creates a queue delivering to destination after delay. A nil
// clock uses the wall clock.
func NewQueue(sender Sender, destination string, tpl Template, delay time.Duration, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	return &Queue{
		sender:      sender,
		destination: destination,
		tpl:         tpl,
		delay:       delay,
		clock:       clk,
		jobs:        make(chan attendance.Summary, queueSize),
	}
}

// Notify enqueues the roster of a finalized round.
func (q *Queue) Notify(ctx context.Context, s attendance.Summary) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting rosters. Run delivers what is already queued and
// then returns.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// Run delivers queued rosters until the queue is closed and drained or ctx
// is cancelled. On cancellation the pre-send delay is cut short and every
// roster already queued is sent before Run returns. A Send in progress is
// never cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.flush(ctx)
			return
		case s, ok := <-q.jobs:
			if !ok {
				return
			}
			q.deliver(ctx, s)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, s attendance.Summary) {
	if q.delay > 0 && ctx.Err() == nil {
		log.Printf("Sending roster of round %d in %s", s.Seq, q.delay)
		t := q.clock.Timer(q.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			log.Printf("Shutting down, sending roster of round %d now", s.Seq)
		case <-t.C:
		}
	}

	err := q.sender.Send(context.WithoutCancel(ctx), q.destination, FormatRoster(q.tpl, s))
	if err != nil {
		log.Printf("WARNING: notify: round %d roster not delivered: %v", s.Seq, err)
	} else {
		log.Printf("Roster of round %d sent to %s", s.Seq, q.destination)
	}
	if q.OnSent != nil {
		q.OnSent(s, err)
	}
}

// flush sends every roster still queued, without waiting out the delay.
func (q *Queue) flush(ctx context.Context) {
	for {
		select {
		case s, ok := <-q.jobs:
			if !ok {
				return
			}
			q.deliver(ctx, s)
		default:
			return
		}
	}
}
