// Package registry is the owned arena of position records. Identifiers are
// monotonically increasing and never reused, so a burned position can never
// alias a later one.
package registry

import (
	"fmt"
	"sync"

	"positionLedger/internal/model"
)

// Registry stores all positions keyed by their token identifier.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*entry
}

type entry struct {
	mu      sync.Mutex
	removed bool
	pos     model.Position
}

// Entry pairs a position with its identifier for snapshot exports.
type Entry struct {
	ID       uint64
	Position model.Position
}

func New() *Registry {
	return &Registry{entries: make(map[uint64]*entry)}
}

// Create inserts a record and returns its fresh identifier.
func (r *Registry) Create(pos model.Position) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	if r.nextID == 0 {
		return 0, fmt.Errorf("position id space exhausted")
	}
	r.entries[r.nextID] = &entry{pos: pos}
	return r.nextID, nil
}

// Get returns a copy of the record, or ErrInvalidTokenID if it does not exist
// or was burned.
func (r *Registry) Get(id uint64) (model.Position, error) {
	e, err := r.lookup(id)
	if err != nil {
		return model.Position{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return model.Position{}, fmt.Errorf("position %d: %w", id, model.ErrInvalidTokenID)
	}
	return e.pos, nil
}

// Update applies the mutator as a single-writer critical section for the
// identifier. The mutator works on a copy; a non-nil error discards every
// change, so readers only ever observe fully applied mutations. Operations on
// different identifiers do not block each other. The per-id lock is held for
// the mutator's whole run, so mutators must not call back into the registry
// for the same identifier.
func (r *Registry) Update(id uint64, mutator func(*model.Position) error) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("position %d: %w", id, model.ErrInvalidTokenID)
	}

	working := e.pos
	if err := mutator(&working); err != nil {
		return err
	}
	e.pos = working
	return nil
}

// Remove deletes the record. It fails with ErrPositionNotEmpty unless the
// position holds no liquidity and owes nothing. The identifier is retired
// permanently.
func (r *Registry) Remove(id uint64) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("position %d: %w", id, model.ErrInvalidTokenID)
	}
	if !e.pos.Empty() {
		return fmt.Errorf("position %d: %w", id, model.ErrPositionNotEmpty)
	}
	e.removed = true

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return nil
}

// Discard deletes a record unconditionally, regardless of its balances. It
// rolls back a creation whose follow-up binding failed, before the identifier
// was ever handed to a caller. The identifier stays retired.
func (r *Registry) Discard(id uint64) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("position %d: %w", id, model.ErrInvalidTokenID)
	}
	e.removed = true

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of every live record, for export tooling.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	refs := make(map[uint64]*entry, len(r.entries))
	for id, e := range r.entries {
		refs[id] = e
	}
	r.mu.Unlock()

	out := make([]Entry, 0, len(refs))
	for id, e := range refs {
		e.mu.Lock()
		if !e.removed {
			out = append(out, Entry{ID: id, Position: e.pos})
		}
		e.mu.Unlock()
	}
	return out
}

func (r *Registry) lookup(id uint64) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("position %d: %w", id, model.ErrInvalidTokenID)
	}
	return e, nil
}
