package primitives

import "slices"

// Clone returns a deep copy of the groups.
func (g ValidatorGroups) Clone() ValidatorGroups {
	out := ValidatorGroups{Rotation: g.Rotation}
	if g.Groups != nil {
		out.Groups = make([][]ValidatorIndex, len(g.Groups))
		for i, group := range g.Groups {
			out.Groups[i] = slices.Clone(group)
		}
	}
	return out
}

// Clone returns a deep copy of the persisted validation data.
func (d PersistedValidationData) Clone() PersistedValidationData {
	d.ParentHead = d.ParentHead.Clone()
	d.HRMPMQCHeads = slices.Clone(d.HRMPMQCHeads)
	return d
}

// Clone returns a deep copy of the validation data.
func (d ValidationData) Clone() ValidationData {
	d.Persisted = d.Persisted.Clone()
	if d.Transient.CodeUpgradeAllowed != nil {
		at := *d.Transient.CodeUpgradeAllowed
		d.Transient.CodeUpgradeAllowed = &at
	}
	return d
}

// Clone returns a copy of the code blob.
func (c ValidationCode) Clone() ValidationCode {
	return ValidationCode(Bytes(c).Clone())
}

// Clone returns a deep copy of the receipt.
func (r CommittedCandidateReceipt) Clone() CommittedCandidateReceipt {
	r.Commitments.HeadData = r.Commitments.HeadData.Clone()
	r.Commitments.NewValidationCode = r.Commitments.NewValidationCode.Clone()
	return r
}

// Clone returns a deep copy of the event.
func (e CandidateEvent) Clone() CandidateEvent {
	e.Receipt = e.Receipt.Clone()
	e.HeadData = e.HeadData.Clone()
	return e
}

// CloneEach deep-copies a slice of values using their Clone method.
func CloneEach[T interface{ Clone() T }](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}
