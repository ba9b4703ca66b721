package snapshot

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/najoast/runtimeapi/primitives"
)

// Provider answers runtime API queries from a snapshot. It is safe for
// concurrent use; Replace swaps the whole snapshot at once. Every answer is
// a copy, so callers may modify what they receive.
type Provider struct {
	mu     sync.RWMutex
	blocks map[primitives.Hash]*BlockState
}

// New creates a Provider from a decoded document.
func New(doc *Document) (*Provider, error) {
	p := &Provider{}
	if err := p.Replace(doc); err != nil {
		return nil, err
	}
	return p, nil
}

// Load creates a Provider from a snapshot file.
func Load(path string) (*Provider, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(doc)
}

// Replace swaps in a new snapshot. On error the old snapshot is kept.
func (p *Provider) Replace(doc *Document) error {
	if doc == nil {
		doc = &Document{}
	}

	blocks, err := compile(doc)
	if err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	p.mu.Lock()
	p.blocks = blocks
	p.mu.Unlock()

	return nil
}

// Reload re-reads the snapshot file at path.
func (p *Provider) Reload(path string) error {
	doc, err := ReadFile(path)
	if err != nil {
		return err
	}
	return p.Replace(doc)
}

// Blocks returns the hashes the snapshot has state for, sorted.
func (p *Provider) Blocks() []primitives.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()

	hashes := make([]primitives.Hash, 0, len(p.blocks))
	for h := range p.blocks {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].String() < hashes[j].String()
	})
	return hashes
}

func (p *Provider) block(ctx context.Context, at primitives.Hash) (*BlockState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	b, ok := p.blocks[at]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, at)
	}
	return b, nil
}

func (p *Provider) Validators(ctx context.Context, at primitives.Hash) ([]primitives.ValidatorID, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b.Validators), nil
}

func (p *Provider) ValidatorGroups(ctx context.Context, at primitives.Hash) (primitives.ValidatorGroups, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return primitives.ValidatorGroups{}, err
	}
	return primitives.ValidatorGroups{Groups: b.ValidatorGroups, Rotation: b.GroupRotation}.Clone(), nil
}

func (p *Provider) AvailabilityCores(ctx context.Context, at primitives.Hash) ([]primitives.CoreState, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b.AvailabilityCores), nil
}

// PersistedValidationData ignores the assumption; a snapshot holds one
// answer per para.
func (p *Provider) PersistedValidationData(ctx context.Context, at primitives.Hash, para primitives.ParaID,
	_ primitives.OccupiedCoreAssumption) (*primitives.PersistedValidationData, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	data, ok := b.ValidationData[para]
	if !ok {
		return nil, nil
	}
	persisted := data.Persisted.Clone()
	return &persisted, nil
}

func (p *Provider) FullValidationData(ctx context.Context, at primitives.Hash, para primitives.ParaID,
	_ primitives.OccupiedCoreAssumption) (*primitives.ValidationData, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	data, ok := b.ValidationData[para]
	if !ok {
		return nil, nil
	}
	data = data.Clone()
	return &data, nil
}

func (p *Provider) SessionIndexForChild(ctx context.Context, at primitives.Hash) (primitives.SessionIndex, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return 0, err
	}
	return b.SessionIndexForChild, nil
}

func (p *Provider) ValidationCode(ctx context.Context, at primitives.Hash, para primitives.ParaID,
	_ primitives.OccupiedCoreAssumption) (*primitives.ValidationCode, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	code, ok := b.ValidationCode[para]
	if !ok {
		return nil, nil
	}
	code = code.Clone()
	return &code, nil
}

func (p *Provider) CandidatePendingAvailability(ctx context.Context, at primitives.Hash,
	para primitives.ParaID) (*primitives.CommittedCandidateReceipt, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	receipt, ok := b.PendingAvailability[para]
	if !ok {
		return nil, nil
	}
	receipt = receipt.Clone()
	return &receipt, nil
}

func (p *Provider) CandidateEvents(ctx context.Context, at primitives.Hash) ([]primitives.CandidateEvent, error) {
	b, err := p.block(ctx, at)
	if err != nil {
		return nil, err
	}
	return primitives.CloneEach(b.CandidateEvents), nil
}
