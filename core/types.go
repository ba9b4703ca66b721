package core

import (
	"errors"
	"time"
)

// Mailbox errors
var (
	ErrMailboxClosed = errors.New("mailbox closed")
	ErrMailboxFull   = errors.New("mailbox full")
)

// State represents the current state of a subsystem loop.
type State uint8

const (
	// StateIdle means the loop has not been started yet
	StateIdle State = iota

	// StateRunning means the loop is receiving from its mailbox
	StateRunning

	// StateStopped means the loop has exited
	StateStopped
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MailboxOptions contains configuration options for creating a Mailbox.
type MailboxOptions struct {
	// Size sets the capacity of the mailbox queue
	Size int

	// Name is a human-readable name used in errors and stats
	Name string
}

// DefaultMailboxOptions returns sensible default options.
func DefaultMailboxOptions() MailboxOptions {
	return MailboxOptions{
		Size: 1024,
		Name: "",
	}
}

// MailboxStats contains runtime statistics for a Mailbox.
type MailboxStats struct {
	// Name of the mailbox
	Name string

	// Envelopes currently queued
	Pending int

	// Capacity of the queue
	Capacity int

	// Total envelopes accepted
	Sent uint64

	// Total envelopes handed to the consumer
	Received uint64

	// Whether Close has been called
	Closed bool

	// Time when the mailbox was created
	CreatedAt time.Time

	// Last time an envelope was received
	LastReceiveAt time.Time
}
