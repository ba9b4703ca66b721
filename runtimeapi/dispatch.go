package runtimeapi

import (
	"context"

	"github.com/najoast/runtimeapi/oneshot"
	"github.com/najoast/runtimeapi/primitives"
)

// Outcome describes what happened to one dispatched request.
type Outcome struct {
	// Kind is the request's query name
	Kind string

	// Handled is false only for a request type the dispatcher does not know
	Handled bool

	// Succeeded is true when the provider answered, including absent answers
	Succeeded bool

	// Delivered is false when the reply channel had already been used or was nil
	Delivered bool
}

// MakeRequest performs the provider call matching request, records its
// outcome and writes the result into the request's reply channel. It never
// fails: provider errors are delivered to the caller as *Error.
func MakeRequest(
	ctx context.Context,
	provider Provider,
	metrics Metrics,
	relayParent primitives.Hash,
	request Request,
) Outcome {
	switch req := request.(type) {
	case Validators:
		v, err := provider.Validators(ctx, relayParent)
		return respond(req, metrics, req.Reply, v, err)
	case ValidatorGroups:
		v, err := provider.ValidatorGroups(ctx, relayParent)
		return respond(req, metrics, req.Reply, v, err)
	case AvailabilityCores:
		v, err := provider.AvailabilityCores(ctx, relayParent)
		return respond(req, metrics, req.Reply, v, err)
	case PersistedValidationData:
		v, err := provider.PersistedValidationData(ctx, relayParent, req.Para, req.Assumption)
		return respond(req, metrics, req.Reply, v, err)
	case FullValidationData:
		v, err := provider.FullValidationData(ctx, relayParent, req.Para, req.Assumption)
		return respond(req, metrics, req.Reply, v, err)
	case SessionIndexForChild:
		v, err := provider.SessionIndexForChild(ctx, relayParent)
		return respond(req, metrics, req.Reply, v, err)
	case ValidationCode:
		v, err := provider.ValidationCode(ctx, relayParent, req.Para, req.Assumption)
		return respond(req, metrics, req.Reply, v, err)
	case CandidatePendingAvailability:
		v, err := provider.CandidatePendingAvailability(ctx, relayParent, req.Para)
		return respond(req, metrics, req.Reply, v, err)
	case CandidateEvents:
		v, err := provider.CandidateEvents(ctx, relayParent)
		return respond(req, metrics, req.Reply, v, err)
	default:
		return Outcome{Kind: "unknown"}
	}
}

// respond classifies the provider answer, records it, then writes it to the
// reply channel exactly once.
func respond[T any](
	req Request,
	metrics Metrics,
	reply *oneshot.Sender[Result[T]],
	value T,
	err error,
) Outcome {
	res := Result[T]{Value: value}
	if err != nil {
		res = Result[T]{Err: newError(err)}
	}

	metrics.OnRequest(err == nil)

	return Outcome{
		Kind:      req.Kind(),
		Handled:   true,
		Succeeded: err == nil,
		Delivered: reply.Send(res),
	}
}
