package runtimeapi

import (
	"github.com/google/uuid"
	"github.com/najoast/runtimeapi/oneshot"
	"github.com/najoast/runtimeapi/primitives"
)

// Result is the value written to a request's reply channel. Err is nil on
// success; on failure it is an *Error and Value is the zero value.
type Result[T any] struct {
	Value T
	Err   error
}

// NewReply returns a reply channel for a request answering with T.
func NewReply[T any]() (*oneshot.Sender[Result[T]], <-chan Result[T]) {
	return oneshot.New[Result[T]]()
}

// Request is one of the nine runtime API queries. The set of
// implementations is closed.
type Request interface {
	// Kind returns the query name used in logs.
	Kind() string

	request()
}

// Validators asks for the current validator set.
type Validators struct {
	Reply *oneshot.Sender[Result[[]primitives.ValidatorID]]
}

// ValidatorGroups asks for the validator groups and rotation info.
type ValidatorGroups struct {
	Reply *oneshot.Sender[Result[primitives.ValidatorGroups]]
}

// AvailabilityCores asks for the occupancy state of every availability core.
type AvailabilityCores struct {
	Reply *oneshot.Sender[Result[[]primitives.CoreState]]
}

// PersistedValidationData asks for a para's persisted validation data.
type PersistedValidationData struct {
	Para       primitives.ParaID
	Assumption primitives.OccupiedCoreAssumption
	Reply      *oneshot.Sender[Result[*primitives.PersistedValidationData]]
}

// FullValidationData asks for a para's full validation data.
type FullValidationData struct {
	Para       primitives.ParaID
	Assumption primitives.OccupiedCoreAssumption
	Reply      *oneshot.Sender[Result[*primitives.ValidationData]]
}

// SessionIndexForChild asks for the session index a child of the block would have.
type SessionIndexForChild struct {
	Reply *oneshot.Sender[Result[primitives.SessionIndex]]
}

// ValidationCode asks for a para's validation code.
type ValidationCode struct {
	Para       primitives.ParaID
	Assumption primitives.OccupiedCoreAssumption
	Reply      *oneshot.Sender[Result[*primitives.ValidationCode]]
}

// CandidatePendingAvailability asks for the candidate a para has pending availability.
type CandidatePendingAvailability struct {
	Para  primitives.ParaID
	Reply *oneshot.Sender[Result[*primitives.CommittedCandidateReceipt]]
}

// CandidateEvents asks for the candidate events emitted in the block.
type CandidateEvents struct {
	Reply *oneshot.Sender[Result[[]primitives.CandidateEvent]]
}

func (Validators) Kind() string                   { return "validators" }
func (ValidatorGroups) Kind() string              { return "validator_groups" }
func (AvailabilityCores) Kind() string            { return "availability_cores" }
func (PersistedValidationData) Kind() string      { return "persisted_validation_data" }
func (FullValidationData) Kind() string           { return "full_validation_data" }
func (SessionIndexForChild) Kind() string         { return "session_index_for_child" }
func (ValidationCode) Kind() string               { return "validation_code" }
func (CandidatePendingAvailability) Kind() string { return "candidate_pending_availability" }
func (CandidateEvents) Kind() string              { return "candidate_events" }

func (Validators) request()                   {}
func (ValidatorGroups) request()              {}
func (AvailabilityCores) request()            {}
func (PersistedValidationData) request()      {}
func (FullValidationData) request()           {}
func (SessionIndexForChild) request()         {}
func (ValidationCode) request()               {}
func (CandidatePendingAvailability) request() {}
func (CandidateEvents) request()              {}

// Message is the communication the runtime API subsystem accepts: a
// request to be evaluated at RelayParent.
type Message struct {
	// ID correlates log lines for one request
	ID uuid.UUID

	RelayParent primitives.Hash
	Request     Request
}

// NewMessage wraps a request for the subsystem's mailbox.
func NewMessage(relayParent primitives.Hash, request Request) Message {
	return Message{
		ID:          uuid.New(),
		RelayParent: relayParent,
		Request:     request,
	}
}
