// Package runtimeapi implements the runtime API subsystem.
//
// The subsystem owns a single mailbox. It answers parachain state queries
// by forwarding each request, tagged with the relay parent it must be
// evaluated at, to a Provider, and it writes the answer into the request's
// reply channel. Requests are handled one at a time in delivery order; the
// only way to stop the loop is the Conclude signal.
//
// Provider failures never escape the dispatcher. They are counted as failed
// requests and delivered to the caller as an *Error. A Provider that has no
// data for an entity (for example an unknown para id) answers with a nil
// value, which is a successful request.
package runtimeapi
