// Package core implements the overseer-facing plumbing shared by subsystems.
//
// This package provides the control signals a subsystem observes, the
// mailbox envelope that multiplexes signals and messages, and a bounded
// channel mailbox that delivers both to a single consumer in order.
package core
