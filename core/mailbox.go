package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Mailbox is a bounded, in-order queue of envelopes with a single consumer.
// It implements both Sender and Receiver.
type Mailbox[M any] struct {
	name  string
	queue chan Envelope[M]

	// closed once by Close; the queue channel itself is never closed so a
	// racing sender cannot panic
	done      chan struct{}
	closeOnce sync.Once

	// Atomic counters for statistics
	sent          uint64
	received      uint64
	createdAt     time.Time
	lastReceiveAt int64 // Unix nanoseconds
}

// NewMailbox creates a new Mailbox.
func NewMailbox[M any](opts MailboxOptions) *Mailbox[M] {
	if opts.Size <= 0 {
		opts.Size = DefaultMailboxOptions().Size
	}

	return &Mailbox[M]{
		name:      opts.Name,
		queue:     make(chan Envelope[M], opts.Size),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
}

// Send enqueues an envelope, blocking while the mailbox is full.
func (m *Mailbox[M]) Send(ctx context.Context, env Envelope[M]) error {
	if m.isClosed() {
		return fmt.Errorf("mailbox %q: %w", m.name, ErrMailboxClosed)
	}

	select {
	case m.queue <- env:
		atomic.AddUint64(&m.sent, 1)
		return nil
	case <-m.done:
		return fmt.Errorf("mailbox %q: %w", m.name, ErrMailboxClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues an envelope without blocking.
func (m *Mailbox[M]) TrySend(env Envelope[M]) error {
	if m.isClosed() {
		return fmt.Errorf("mailbox %q: %w", m.name, ErrMailboxClosed)
	}

	select {
	case m.queue <- env:
		atomic.AddUint64(&m.sent, 1)
		return nil
	default:
		return fmt.Errorf("mailbox %q: %w", m.name, ErrMailboxFull)
	}
}

// Recv blocks until the next envelope is available. Envelopes queued before
// Close are still delivered; after that Recv returns ErrMailboxClosed.
func (m *Mailbox[M]) Recv(ctx context.Context) (Envelope[M], error) {
	select {
	case env := <-m.queue:
		m.markReceived()
		return env, nil
	default:
	}

	select {
	case env := <-m.queue:
		m.markReceived()
		return env, nil
	case <-m.done:
		select {
		case env := <-m.queue:
			m.markReceived()
			return env, nil
		default:
			var zero Envelope[M]
			return zero, fmt.Errorf("mailbox %q: %w", m.name, ErrMailboxClosed)
		}
	case <-ctx.Done():
		var zero Envelope[M]
		return zero, ctx.Err()
	}
}

// Close stops the mailbox from accepting envelopes. It is safe to call
// more than once.
func (m *Mailbox[M]) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

// Stats returns current runtime statistics for this Mailbox.
func (m *Mailbox[M]) Stats() MailboxStats {
	last := atomic.LoadInt64(&m.lastReceiveAt)
	var lastReceiveAt time.Time
	if last > 0 {
		lastReceiveAt = time.Unix(0, last)
	}

	return MailboxStats{
		Name:          m.name,
		Pending:       len(m.queue),
		Capacity:      cap(m.queue),
		Sent:          atomic.LoadUint64(&m.sent),
		Received:      atomic.LoadUint64(&m.received),
		Closed:        m.isClosed(),
		CreatedAt:     m.createdAt,
		LastReceiveAt: lastReceiveAt,
	}
}

func (m *Mailbox[M]) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Mailbox[M]) markReceived() {
	atomic.AddUint64(&m.received, 1)
	atomic.StoreInt64(&m.lastReceiveAt, time.Now().UnixNano())
}
