// Package token binds position identifiers to their external ownership
// identities. It holds only the id-to-owner mapping; accounting fields are
// the registry's alone.
package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionLedger/internal/model"
)

// Lifecycle tracks which identity owns each live position.
type Lifecycle struct {
	mu     sync.RWMutex
	owners map[uint64]common.Address

	transferHooks []func(positionID uint64) error
	logger        *zap.Logger
}

func NewLifecycle(logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		owners: make(map[uint64]common.Address),
		logger: logger,
	}
}

// OnTransfer registers a hook invoked before every ownership transfer
// commits. The approval ledger uses this to retire outstanding permits.
func (l *Lifecycle) OnTransfer(hook func(positionID uint64) error) {
	l.transferHooks = append(l.transferHooks, hook)
}

// Bind attaches a freshly minted position to its first owner.
func (l *Lifecycle) Bind(positionID uint64, owner common.Address) error {
	if owner == (common.Address{}) {
		return fmt.Errorf("zero owner for position %d", positionID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.owners[positionID]; ok {
		return fmt.Errorf("position %d already bound", positionID)
	}
	l.owners[positionID] = owner
	return nil
}

// Unbind releases the binding at burn time.
func (l *Lifecycle) Unbind(positionID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.owners[positionID]; !ok {
		return fmt.Errorf("position %d: %w", positionID, model.ErrInvalidTokenID)
	}
	delete(l.owners, positionID)
	return nil
}

// OwnerOf returns the owning identity.
func (l *Lifecycle) OwnerOf(positionID uint64) (common.Address, error) {
	l.mu.RLock()
	owner, ok := l.owners[positionID]
	l.mu.RUnlock()
	if !ok {
		return common.Address{}, fmt.Errorf("position %d: %w", positionID, model.ErrInvalidTokenID)
	}
	return owner, nil
}

// Transfer reassigns ownership. Hooks run first so a failed permit
// invalidation aborts the whole transfer.
func (l *Lifecycle) Transfer(positionID uint64, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return fmt.Errorf("zero owner for position %d", positionID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	old, ok := l.owners[positionID]
	if !ok {
		return fmt.Errorf("position %d: %w", positionID, model.ErrInvalidTokenID)
	}

	for _, hook := range l.transferHooks {
		if err := hook(positionID); err != nil {
			return fmt.Errorf("transfer hook: %w", err)
		}
	}
	l.owners[positionID] = newOwner

	l.logger.Debug("position transferred",
		zap.Uint64("position_id", positionID),
		zap.String("from", old.Hex()),
		zap.String("to", newOwner.Hex()),
	)
	return nil
}
