package runtimeapi

import (
	"context"

	"github.com/najoast/runtimeapi/primitives"
)

// Provider answers runtime API queries against the state at a given block.
//
// Methods returning a pointer answer nil when the state has no entry for
// the requested para; that is a successful answer, not an error. An error
// means the provider itself could not answer.
type Provider interface {
	Validators(ctx context.Context, at primitives.Hash) ([]primitives.ValidatorID, error)

	ValidatorGroups(ctx context.Context, at primitives.Hash) (primitives.ValidatorGroups, error)

	AvailabilityCores(ctx context.Context, at primitives.Hash) ([]primitives.CoreState, error)

	PersistedValidationData(ctx context.Context, at primitives.Hash, para primitives.ParaID,
		assumption primitives.OccupiedCoreAssumption) (*primitives.PersistedValidationData, error)

	FullValidationData(ctx context.Context, at primitives.Hash, para primitives.ParaID,
		assumption primitives.OccupiedCoreAssumption) (*primitives.ValidationData, error)

	SessionIndexForChild(ctx context.Context, at primitives.Hash) (primitives.SessionIndex, error)

	ValidationCode(ctx context.Context, at primitives.Hash, para primitives.ParaID,
		assumption primitives.OccupiedCoreAssumption) (*primitives.ValidationCode, error)

	CandidatePendingAvailability(ctx context.Context, at primitives.Hash,
		para primitives.ParaID) (*primitives.CommittedCandidateReceipt, error)

	CandidateEvents(ctx context.Context, at primitives.Hash) ([]primitives.CandidateEvent, error)
}
