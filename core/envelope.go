package core

// Envelope is a single mailbox item. Exactly one of Signal and Message is
// meaningful: when Signal is non-nil the envelope carries a signal.
type Envelope[M any] struct {
	Signal  Signal
	Message M
}

// SignalEnvelope wraps a control signal.
func SignalEnvelope[M any](s Signal) Envelope[M] {
	return Envelope[M]{Signal: s}
}

// MessageEnvelope wraps a communication for the subsystem.
func MessageEnvelope[M any](msg M) Envelope[M] {
	return Envelope[M]{Message: msg}
}

// IsSignal reports whether the envelope carries a control signal.
func (e Envelope[M]) IsSignal() bool {
	return e.Signal != nil
}
