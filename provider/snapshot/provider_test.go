package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/najoast/runtimeapi/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	blockA = primitives.HashFromByte(0x01)
	blockB = primitives.HashFromByte(0x02)
)

func testDocumentYAML() string {
	return `
blocks:
  "` + blockA.String() + `":
    validators:
      - "` + primitives.HashFromByte(0xa1).String() + `"
      - "` + primitives.HashFromByte(0xa2).String() + `"
    validator_groups: [[0, 1], [2]]
    group_rotation:
      session_start_block: 1
      group_rotation_frequency: 100
      now: 10
    availability_cores:
      - kind: occupied
        para: 5
        candidate_hash: "` + primitives.HashFromByte(0x09).String() + `"
      - kind: free
    validation_data:
      5:
        persisted:
          parent_head: "0x0102"
          block_number: 7
          max_pov_size: 1024
        transient:
          max_code_size: 4096
          balance: 10
    session_index_for_child: 3
    validation_code:
      5: "0xc0de"
    candidate_pending_availability:
      5:
        descriptor:
          para_id: 5
          relay_parent: "` + blockA.String() + `"
        commitments:
          head_data: "0xbeef"
    candidate_events:
      - kind: backed
        receipt:
          descriptor:
            para_id: 5
`
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	doc, err := Parse([]byte(testDocumentYAML()), FormatYAML)
	require.NoError(t, err)

	p, err := New(doc)
	require.NoError(t, err)
	return p
}

func TestProvider_AnswersKnownBlock(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	validators, err := p.Validators(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, []primitives.ValidatorID{
		primitives.ValidatorID(primitives.HashFromByte(0xa1)),
		primitives.ValidatorID(primitives.HashFromByte(0xa2)),
	}, validators)

	groups, err := p.ValidatorGroups(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, [][]primitives.ValidatorIndex{{0, 1}, {2}}, groups.Groups)
	assert.Equal(t, primitives.BlockNumber(100), groups.Rotation.GroupRotationFrequency)

	cores, err := p.AvailabilityCores(ctx, blockA)
	require.NoError(t, err)
	require.Len(t, cores, 2)
	assert.Equal(t, primitives.CoreOccupied, cores[0].Kind)
	assert.Equal(t, primitives.HashFromByte(0x09), cores[0].CandidateHash)
	assert.Equal(t, primitives.CoreFree, cores[1].Kind)

	pvd, err := p.PersistedValidationData(ctx, blockA, 5, primitives.AssumeIncluded)
	require.NoError(t, err)
	require.NotNil(t, pvd)
	assert.Equal(t, primitives.BlockNumber(7), pvd.BlockNumber)

	full, err := p.FullValidationData(ctx, blockA, 5, primitives.AssumeTimedOut)
	require.NoError(t, err)
	require.NotNil(t, full)
	assert.Equal(t, uint32(4096), full.Transient.MaxCodeSize)

	session, err := p.SessionIndexForChild(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, primitives.SessionIndex(3), session)

	code, err := p.ValidationCode(ctx, blockA, 5, primitives.AssumeIncluded)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, primitives.ValidationCode{0xc0, 0xde}, *code)

	receipt, err := p.CandidatePendingAvailability(ctx, blockA, 5)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, blockA, receipt.Descriptor.RelayParent)

	events, err := p.CandidateEvents(ctx, blockA)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, primitives.CandidateBacked, events[0].Kind)
}

func TestProvider_UnknownParaIsAbsent(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	pvd, err := p.PersistedValidationData(ctx, blockA, 6, primitives.AssumeIncluded)
	require.NoError(t, err)
	assert.Nil(t, pvd)

	full, err := p.FullValidationData(ctx, blockA, 6, primitives.AssumeIncluded)
	require.NoError(t, err)
	assert.Nil(t, full)

	code, err := p.ValidationCode(ctx, blockA, 6, primitives.AssumeIncluded)
	require.NoError(t, err)
	assert.Nil(t, code)

	receipt, err := p.CandidatePendingAvailability(ctx, blockA, 6)
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestProvider_UnknownBlockFails(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Validators(context.Background(), blockB)
	assert.ErrorIs(t, err, ErrUnknownBlock)

	_, err = p.ValidationCode(context.Background(), blockB, 5, primitives.AssumeIncluded)
	assert.ErrorIs(t, err, ErrUnknownBlock)
}

func TestProvider_CanceledContext(t *testing.T) {
	p := newTestProvider(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.SessionIndexForChild(ctx, blockA)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_ReplaceKeepsOldOnError(t *testing.T) {
	p := newTestProvider(t)

	err := p.Replace(&Document{Blocks: map[string]BlockState{"not-a-hash": {}}})
	require.Error(t, err)

	assert.Equal(t, []primitives.Hash{blockA}, p.Blocks())
}

func TestParse_InvalidValidationCode(t *testing.T) {
	data := `blocks:
  "` + blockA.String() + `":
    validation_code:
      5: "0xzz"
`
	_, err := Parse([]byte(data), FormatYAML)
	assert.Error(t, err)
}

func TestParse_BlobsAreHex(t *testing.T) {
	yamlDoc := `blocks:
  "` + blockA.String() + `":
    validation_data:
      5:
        persisted:
          parent_head: "0x0102"
`
	jsonDoc := `{"blocks": {"` + blockA.String() + `": {"validation_data": {"5": {"persisted": {"parent_head": "0x0102"}}}}}}`

	for name, parse := range map[string]func() (*Document, error){
		"yaml": func() (*Document, error) { return Parse([]byte(yamlDoc), FormatYAML) },
		"json": func() (*Document, error) { return Parse([]byte(jsonDoc), FormatJSON) },
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := parse()
			require.NoError(t, err)

			head := doc.Blocks[blockA.String()].ValidationData[5].Persisted.ParentHead
			assert.Equal(t, primitives.Bytes{0x01, 0x02}, head)
		})
	}
}

func TestDocument_YAMLConvertsToJSON(t *testing.T) {
	doc, err := Parse([]byte(testDocumentYAML()), FormatYAML)
	require.NoError(t, err)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"parent_head":"0x0102"`)
	assert.Contains(t, string(data), `"5":"0xc0de"`)

	back, err := Parse(data, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestProvider_AnswersAreCopies(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	validators, err := p.Validators(ctx, blockA)
	require.NoError(t, err)
	validators[0] = primitives.ValidatorID{0xff}

	groups, err := p.ValidatorGroups(ctx, blockA)
	require.NoError(t, err)
	groups.Groups[0][0] = 9

	cores, err := p.AvailabilityCores(ctx, blockA)
	require.NoError(t, err)
	cores[0].Kind = primitives.CoreFree

	pvd, err := p.PersistedValidationData(ctx, blockA, 5, primitives.AssumeIncluded)
	require.NoError(t, err)
	pvd.ParentHead[0] = 0xff
	pvd.BlockNumber = 99

	code, err := p.ValidationCode(ctx, blockA, 5, primitives.AssumeIncluded)
	require.NoError(t, err)
	(*code)[0] = 0x00

	receipt, err := p.CandidatePendingAvailability(ctx, blockA, 5)
	require.NoError(t, err)
	receipt.Commitments.HeadData[0] = 0x00

	events, err := p.CandidateEvents(ctx, blockA)
	require.NoError(t, err)
	events[0].Kind = primitives.CandidateTimedOut

	validators, err = p.Validators(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, primitives.ValidatorID(primitives.HashFromByte(0xa1)), validators[0])

	groups, err = p.ValidatorGroups(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, [][]primitives.ValidatorIndex{{0, 1}, {2}}, groups.Groups)

	cores, err = p.AvailabilityCores(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, primitives.CoreOccupied, cores[0].Kind)

	full, err := p.FullValidationData(ctx, blockA, 5, primitives.AssumeIncluded)
	require.NoError(t, err)
	assert.Equal(t, primitives.Bytes{0x01, 0x02}, full.Persisted.ParentHead)
	assert.Equal(t, primitives.BlockNumber(7), full.Persisted.BlockNumber)

	code, err = p.ValidationCode(ctx, blockA, 5, primitives.AssumeIncluded)
	require.NoError(t, err)
	assert.Equal(t, primitives.ValidationCode{0xc0, 0xde}, *code)

	receipt, err = p.CandidatePendingAvailability(ctx, blockA, 5)
	require.NoError(t, err)
	assert.Equal(t, primitives.Bytes{0xbe, 0xef}, receipt.Commitments.HeadData)

	events, err = p.CandidateEvents(ctx, blockA)
	require.NoError(t, err)
	assert.Equal(t, primitives.CandidateBacked, events[0].Kind)
}

func TestLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDocumentYAML()), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []primitives.Hash{blockA}, p.Blocks())

	updated := strings.ReplaceAll(testDocumentYAML(), blockA.String(), blockB.String())
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, p.Reload(path))

	assert.Equal(t, []primitives.Hash{blockB}, p.Blocks())
}

func TestParseJSON(t *testing.T) {
	data := `{"blocks": {"` + blockB.String() + `": {"session_index_for_child": 9, "validation_code": {"7": "0x01"}}}}`

	doc, err := Parse([]byte(data), FormatJSON)
	require.NoError(t, err)

	p, err := New(doc)
	require.NoError(t, err)

	session, err := p.SessionIndexForChild(context.Background(), blockB)
	require.NoError(t, err)
	assert.Equal(t, primitives.SessionIndex(9), session)

	code, err := p.ValidationCode(context.Background(), blockB, 7, primitives.AssumeFree)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, primitives.ValidationCode{0x01}, *code)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"state.yaml", FormatYAML, false},
		{"state.YML", FormatYAML, false},
		{"state.json", FormatJSON, false},
		{"state.toml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
