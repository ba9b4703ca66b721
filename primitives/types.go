package primitives

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParaID identifies a parachain.
type ParaID uint32

// SessionIndex is the index of a validator session.
type SessionIndex uint32

// ValidatorIndex is the position of a validator in the session's validator set.
type ValidatorIndex uint32

// BlockNumber is a relay chain block height.
type BlockNumber uint32

// ValidatorID is a validator's public key.
type ValidatorID [32]byte

func (v ValidatorID) String() string {
	return "0x" + hex.EncodeToString(v[:])
}

func (v ValidatorID) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ValidatorID) UnmarshalText(text []byte) error {
	h, err := ParseHash(string(text))
	if err != nil {
		return fmt.Errorf("invalid validator id: %w", err)
	}
	*v = ValidatorID(h)
	return nil
}

// OccupiedCoreAssumption tells the runtime how to treat a core that is
// currently occupied when computing validation data.
type OccupiedCoreAssumption uint8

const (
	// AssumeIncluded assumes the candidate occupying the core was made available and included.
	AssumeIncluded OccupiedCoreAssumption = iota

	// AssumeTimedOut assumes the candidate occupying the core timed out.
	AssumeTimedOut

	// AssumeFree assumes the core is not occupied.
	AssumeFree
)

// String returns the string representation of OccupiedCoreAssumption.
func (a OccupiedCoreAssumption) String() string {
	switch a {
	case AssumeIncluded:
		return "included"
	case AssumeTimedOut:
		return "timed_out"
	case AssumeFree:
		return "free"
	default:
		return "unknown"
	}
}

// ParseOccupiedCoreAssumption parses the names produced by String.
func ParseOccupiedCoreAssumption(s string) (OccupiedCoreAssumption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "included", "":
		return AssumeIncluded, nil
	case "timed_out", "timedout":
		return AssumeTimedOut, nil
	case "free":
		return AssumeFree, nil
	default:
		return AssumeIncluded, fmt.Errorf("unknown occupied core assumption %q", s)
	}
}

func (a OccupiedCoreAssumption) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *OccupiedCoreAssumption) UnmarshalText(text []byte) error {
	parsed, err := ParseOccupiedCoreAssumption(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// GroupRotationInfo describes how validator groups rotate across cores.
type GroupRotationInfo struct {
	SessionStartBlock      BlockNumber `yaml:"session_start_block" json:"session_start_block"`
	GroupRotationFrequency BlockNumber `yaml:"group_rotation_frequency" json:"group_rotation_frequency"`
	Now                    BlockNumber `yaml:"now" json:"now"`
}

// ValidatorGroups is the answer to a validator groups query.
type ValidatorGroups struct {
	Groups   [][]ValidatorIndex `yaml:"groups" json:"groups"`
	Rotation GroupRotationInfo  `yaml:"rotation" json:"rotation"`
}

// CoreKind is the occupancy state of an availability core.
type CoreKind string

const (
	CoreFree      CoreKind = "free"
	CoreScheduled CoreKind = "scheduled"
	CoreOccupied  CoreKind = "occupied"
)

// CoreState is the occupancy state of a single availability core.
// Para is meaningful for scheduled and occupied cores, CandidateHash only
// for occupied ones.
type CoreState struct {
	Kind          CoreKind `yaml:"kind" json:"kind"`
	Para          ParaID   `yaml:"para,omitempty" json:"para,omitempty"`
	CandidateHash Hash     `yaml:"candidate_hash,omitempty" json:"candidate_hash,omitempty"`
	GroupIndex    uint32   `yaml:"group_index,omitempty" json:"group_index,omitempty"`
}

// PersistedValidationData is the validation data that is persisted on chain.
type PersistedValidationData struct {
	ParentHead   Bytes       `yaml:"parent_head" json:"parent_head"`
	BlockNumber  BlockNumber `yaml:"block_number" json:"block_number"`
	HRMPMQCHeads []Hash      `yaml:"hrmp_mqc_heads,omitempty" json:"hrmp_mqc_heads,omitempty"`
	DMQMQCHead   Hash        `yaml:"dmq_mqc_head" json:"dmq_mqc_head"`
	MaxPoVSize   uint32      `yaml:"max_pov_size" json:"max_pov_size"`
}

// TransientValidationData is validation data that is not persisted.
type TransientValidationData struct {
	MaxCodeSize        uint32       `yaml:"max_code_size" json:"max_code_size"`
	MaxHeadDataSize    uint32       `yaml:"max_head_data_size" json:"max_head_data_size"`
	Balance            uint64       `yaml:"balance" json:"balance"`
	CodeUpgradeAllowed *BlockNumber `yaml:"code_upgrade_allowed,omitempty" json:"code_upgrade_allowed,omitempty"`
	DMQLength          uint32       `yaml:"dmq_length" json:"dmq_length"`
}

// ValidationData is the full validation data of a para.
type ValidationData struct {
	Persisted PersistedValidationData `yaml:"persisted" json:"persisted"`
	Transient TransientValidationData `yaml:"transient" json:"transient"`
}

// ValidationCode is a para's validation function blob. Like Bytes, it is
// hex in text form.
type ValidationCode []byte

func (c ValidationCode) MarshalText() ([]byte, error) {
	return Bytes(c).MarshalText()
}

func (c *ValidationCode) UnmarshalText(text []byte) error {
	var b Bytes
	if err := b.UnmarshalText(text); err != nil {
		return fmt.Errorf("validation code: %w", err)
	}
	*c = ValidationCode(b)
	return nil
}

// CandidateDescriptor is the unique descriptor of a candidate receipt.
type CandidateDescriptor struct {
	ParaID            ParaID      `yaml:"para_id" json:"para_id"`
	RelayParent       Hash        `yaml:"relay_parent" json:"relay_parent"`
	Collator          ValidatorID `yaml:"collator" json:"collator"`
	PersistedDataHash Hash        `yaml:"persisted_validation_data_hash" json:"persisted_validation_data_hash"`
	PoVHash           Hash        `yaml:"pov_hash" json:"pov_hash"`
}

// CandidateCommitments are the commitments made by a candidate.
type CandidateCommitments struct {
	HeadData                  Bytes       `yaml:"head_data" json:"head_data"`
	NewValidationCode         Bytes       `yaml:"new_validation_code,omitempty" json:"new_validation_code,omitempty"`
	ProcessedDownwardMessages uint32      `yaml:"processed_downward_messages" json:"processed_downward_messages"`
	HRMPWatermark             BlockNumber `yaml:"hrmp_watermark" json:"hrmp_watermark"`
}

// CommittedCandidateReceipt is a candidate receipt with its commitments.
type CommittedCandidateReceipt struct {
	Descriptor  CandidateDescriptor  `yaml:"descriptor" json:"descriptor"`
	Commitments CandidateCommitments `yaml:"commitments" json:"commitments"`
}

// CandidateEventKind is the lifecycle stage a candidate event reports.
type CandidateEventKind string

const (
	CandidateBacked   CandidateEventKind = "backed"
	CandidateIncluded CandidateEventKind = "included"
	CandidateTimedOut CandidateEventKind = "timed_out"
)

// CandidateEvent reports a candidate's lifecycle change in a block.
type CandidateEvent struct {
	Kind     CandidateEventKind        `yaml:"kind" json:"kind"`
	Receipt  CommittedCandidateReceipt `yaml:"receipt" json:"receipt"`
	HeadData Bytes                     `yaml:"head_data,omitempty" json:"head_data,omitempty"`
}
