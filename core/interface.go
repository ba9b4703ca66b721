package core

import (
	"context"

	"github.com/najoast/runtimeapi/primitives"
)

// Signal is a lifecycle or status notification delivered to every subsystem.
type Signal interface {
	// SignalName returns a short name for logs.
	SignalName() string

	signal()
}

// Conclude tells the subsystem to shut down. It is the only signal a
// subsystem must act on.
type Conclude struct{}

// ActiveLeaves reports relay chain heads that were activated or deactivated.
type ActiveLeaves struct {
	Activated   []primitives.Hash
	Deactivated []primitives.Hash
}

// BlockFinalized reports a newly finalized relay chain block.
type BlockFinalized struct {
	Hash primitives.Hash
}

func (Conclude) SignalName() string       { return "conclude" }
func (ActiveLeaves) SignalName() string   { return "active_leaves" }
func (BlockFinalized) SignalName() string { return "block_finalized" }

func (Conclude) signal()       {}
func (ActiveLeaves) signal()   {}
func (BlockFinalized) signal() {}

// Receiver is the subsystem side of its mailbox.
type Receiver[M any] interface {
	// Recv blocks until the next envelope is available.
	// It returns ErrMailboxClosed once the mailbox is closed and drained.
	Recv(ctx context.Context) (Envelope[M], error)
}

// Sender is the overseer side of a subsystem mailbox.
type Sender[M any] interface {
	// Send enqueues an envelope, blocking while the mailbox is full.
	Send(ctx context.Context, env Envelope[M]) error

	// TrySend enqueues an envelope without blocking.
	TrySend(env Envelope[M]) error
}
