// Package oneshot provides a single-use reply channel.
//
// A Sender accepts exactly one value. The receiving side is a plain
// buffered channel, so the write never blocks: a receiver that has gone
// away simply never reads the value, and the value is collected with the
// channel.
package oneshot

import "sync/atomic"

// Sender is the write side of a oneshot channel.
type Sender[T any] struct {
	ch   chan T
	sent atomic.Bool
}

// New returns a connected sender and receiver.
func New[T any]() (*Sender[T], <-chan T) {
	ch := make(chan T, 1)
	return &Sender[T]{ch: ch}, ch
}

// Send delivers v to the receiver. Only the first call has any effect; it
// returns false for every later call and for a nil Sender.
func (s *Sender[T]) Send(v T) bool {
	if s == nil || !s.sent.CompareAndSwap(false, true) {
		return false
	}

	s.ch <- v
	close(s.ch)
	return true
}

// Sent reports whether a value has already been delivered.
func (s *Sender[T]) Sent() bool {
	return s != nil && s.sent.Load()
}
