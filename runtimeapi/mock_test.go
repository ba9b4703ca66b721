package runtimeapi

import (
	"context"
	"testing"

	"github.com/najoast/runtimeapi/primitives"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// mockProvider answers from in-memory state. When fail is set every method
// returns it instead.
type mockProvider struct {
	validators                   []primitives.ValidatorID
	validatorGroups              [][]primitives.ValidatorIndex
	availabilityCores            []primitives.CoreState
	validationData               map[primitives.ParaID]primitives.ValidationData
	sessionIndexForChild         primitives.SessionIndex
	validationCode               map[primitives.ParaID]primitives.ValidationCode
	candidatePendingAvailability map[primitives.ParaID]primitives.CommittedCandidateReceipt
	candidateEvents              []primitives.CandidateEvent

	fail  error
	calls []string
	at    []primitives.Hash
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		validationData:               make(map[primitives.ParaID]primitives.ValidationData),
		validationCode:               make(map[primitives.ParaID]primitives.ValidationCode),
		candidatePendingAvailability: make(map[primitives.ParaID]primitives.CommittedCandidateReceipt),
	}
}

func (m *mockProvider) record(name string, at primitives.Hash) error {
	m.calls = append(m.calls, name)
	m.at = append(m.at, at)
	return m.fail
}

var testRotation = primitives.GroupRotationInfo{
	SessionStartBlock:      1,
	GroupRotationFrequency: 100,
	Now:                    10,
}

func (m *mockProvider) Validators(_ context.Context, at primitives.Hash) ([]primitives.ValidatorID, error) {
	if err := m.record("validators", at); err != nil {
		return nil, err
	}
	return m.validators, nil
}

func (m *mockProvider) ValidatorGroups(_ context.Context, at primitives.Hash) (primitives.ValidatorGroups, error) {
	if err := m.record("validator_groups", at); err != nil {
		return primitives.ValidatorGroups{}, err
	}
	return primitives.ValidatorGroups{Groups: m.validatorGroups, Rotation: testRotation}, nil
}

func (m *mockProvider) AvailabilityCores(_ context.Context, at primitives.Hash) ([]primitives.CoreState, error) {
	if err := m.record("availability_cores", at); err != nil {
		return nil, err
	}
	return m.availabilityCores, nil
}

func (m *mockProvider) PersistedValidationData(_ context.Context, at primitives.Hash, para primitives.ParaID,
	_ primitives.OccupiedCoreAssumption) (*primitives.PersistedValidationData, error) {
	if err := m.record("persisted_validation_data", at); err != nil {
		return nil, err
	}
	data, ok := m.validationData[para]
	if !ok {
		return nil, nil
	}
	return &data.Persisted, nil
}

func (m *mockProvider) FullValidationData(_ context.Context, at primitives.Hash, para primitives.ParaID,
	_ primitives.OccupiedCoreAssumption) (*primitives.ValidationData, error) {
	if err := m.record("full_validation_data", at); err != nil {
		return nil, err
	}
	data, ok := m.validationData[para]
	if !ok {
		return nil, nil
	}
	return &data, nil
}

func (m *mockProvider) SessionIndexForChild(_ context.Context, at primitives.Hash) (primitives.SessionIndex, error) {
	if err := m.record("session_index_for_child", at); err != nil {
		return 0, err
	}
	return m.sessionIndexForChild, nil
}

func (m *mockProvider) ValidationCode(_ context.Context, at primitives.Hash, para primitives.ParaID,
	_ primitives.OccupiedCoreAssumption) (*primitives.ValidationCode, error) {
	if err := m.record("validation_code", at); err != nil {
		return nil, err
	}
	code, ok := m.validationCode[para]
	if !ok {
		return nil, nil
	}
	return &code, nil
}

func (m *mockProvider) CandidatePendingAvailability(_ context.Context, at primitives.Hash,
	para primitives.ParaID) (*primitives.CommittedCandidateReceipt, error) {
	if err := m.record("candidate_pending_availability", at); err != nil {
		return nil, err
	}
	receipt, ok := m.candidatePendingAvailability[para]
	if !ok {
		return nil, nil
	}
	return &receipt, nil
}

func (m *mockProvider) CandidateEvents(_ context.Context, at primitives.Hash) ([]primitives.CandidateEvent, error) {
	if err := m.record("candidate_events", at); err != nil {
		return nil, err
	}
	return m.candidateEvents, nil
}

// populatedProvider returns a provider with data for para 5 and none for para 6.
func populatedProvider() *mockProvider {
	api := newMockProvider()
	api.validators = []primitives.ValidatorID{{1}, {2}}
	api.validatorGroups = [][]primitives.ValidatorIndex{{0, 1}, {2}}
	api.availabilityCores = []primitives.CoreState{
		{Kind: primitives.CoreOccupied, Para: 5, CandidateHash: primitives.HashFromByte(9)},
		{Kind: primitives.CoreFree},
	}
	api.validationData[5] = primitives.ValidationData{
		Persisted: primitives.PersistedValidationData{ParentHead: []byte{1, 2}, BlockNumber: 7, MaxPoVSize: 1024},
		Transient: primitives.TransientValidationData{MaxCodeSize: 4096, Balance: 10},
	}
	api.sessionIndexForChild = 3
	api.validationCode[5] = primitives.ValidationCode("CODE_A")
	api.candidatePendingAvailability[5] = primitives.CommittedCandidateReceipt{
		Descriptor: primitives.CandidateDescriptor{ParaID: 5, RelayParent: primitives.HashFromByte(1)},
	}
	api.candidateEvents = []primitives.CandidateEvent{
		{Kind: primitives.CandidateBacked, Receipt: api.candidatePendingAvailability[5]},
	}
	return api
}

func newTestMetrics(t *testing.T) *prometheusMetrics {
	t.Helper()

	m, err := RegisterMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m.(*prometheusMetrics)
}

func counter(m *prometheusMetrics, label string) float64 {
	return testutil.ToFloat64(m.requests.WithLabelValues(label))
}
