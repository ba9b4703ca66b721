// Package snapshot provides a runtime API provider that answers from a
// static state snapshot loaded from a YAML or JSON document.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/najoast/runtimeapi/primitives"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a snapshot document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Snapshot errors
var (
	ErrUnknownBlock      = errors.New("unknown block")
	ErrUnsupportedFormat = errors.New("unsupported snapshot format")
)

// Document is the on-disk form of a snapshot. Blocks is keyed by the hex
// block hash.
type Document struct {
	Blocks map[string]BlockState `yaml:"blocks" json:"blocks"`
}

// BlockState is the state answered for one block.
type BlockState struct {
	Validators           []primitives.ValidatorID                                   `yaml:"validators" json:"validators"`
	ValidatorGroups      [][]primitives.ValidatorIndex                              `yaml:"validator_groups" json:"validator_groups"`
	GroupRotation        primitives.GroupRotationInfo                               `yaml:"group_rotation" json:"group_rotation"`
	AvailabilityCores    []primitives.CoreState                                     `yaml:"availability_cores" json:"availability_cores"`
	ValidationData       map[primitives.ParaID]primitives.ValidationData            `yaml:"validation_data" json:"validation_data"`
	SessionIndexForChild primitives.SessionIndex                                    `yaml:"session_index_for_child" json:"session_index_for_child"`
	ValidationCode       map[primitives.ParaID]primitives.ValidationCode            `yaml:"validation_code" json:"validation_code"`
	PendingAvailability  map[primitives.ParaID]primitives.CommittedCandidateReceipt `yaml:"candidate_pending_availability" json:"candidate_pending_availability"`
	CandidateEvents      []primitives.CandidateEvent                                `yaml:"candidate_events" json:"candidate_events"`
}

// FormatFromPath determines the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Parse decodes a snapshot document.
func Parse(data []byte, format Format) (*Document, error) {
	doc := &Document{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML snapshot: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return doc, nil
}

// ReadFile reads and decodes a snapshot document from disk.
func ReadFile(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	return Parse(data, format)
}

// compile indexes the document's blocks by parsed hash.
func compile(doc *Document) (map[primitives.Hash]*BlockState, error) {
	blocks := make(map[primitives.Hash]*BlockState, len(doc.Blocks))

	for key, state := range doc.Blocks {
		hash, err := primitives.ParseHash(key)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", key, err)
		}
		blocks[hash] = &state
	}

	return blocks, nil
}
