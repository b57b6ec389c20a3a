// Package permit implements off-chain-signed delegation over positions: a
// domain-separated digest signed by the owner grants an operator control
// until the position's replay counter moves on.
package permit

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionLedger/internal/model"
)

// Store is the slice of the registry the ledger needs: nonce and operator
// live on the position record.
type Store interface {
	Get(positionID uint64) (model.Position, error)
	Update(positionID uint64, mutator func(*model.Position) error) error
}

// OwnerSource resolves a position's current ownership identity.
type OwnerSource interface {
	OwnerOf(positionID uint64) (common.Address, error)
}

// Recoverer recovers the signing identity from a digest and signature. Kept
// narrow so tests can substitute a fake.
type Recoverer interface {
	Recover(digest common.Hash, sig []byte) (common.Address, error)
}

// Ledger verifies delegation signatures and tracks the authorized operator
// per position.
type Ledger struct {
	domain  common.Hash
	store   Store
	owners  OwnerSource
	recover Recoverer
	logger  *zap.Logger
	now     func() time.Time
}

func NewLedger(chainID uint64, verifier common.Address, store Store, owners OwnerSource, recoverer Recoverer, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		domain:  domainSeparator(chainID, verifier),
		store:   store,
		owners:  owners,
		recover: recoverer,
		logger:  logger,
		now:     time.Now,
	}
}

// Authorize consumes a signed delegation: on success the operator is set and
// the replay counter advances by exactly one. The nonce and expiry must be
// the values the owner signed over.
func (l *Ledger) Authorize(positionID uint64, operator common.Address, nonce, expiry uint64, sig []byte) error {
	if uint64(l.now().Unix()) > expiry {
		return fmt.Errorf("permit for position %d: %w", positionID, model.ErrPermitExpired)
	}

	owner, err := l.owners.OwnerOf(positionID)
	if err != nil {
		return err
	}

	return l.store.Update(positionID, func(pos *model.Position) error {
		if nonce != pos.Nonce {
			return fmt.Errorf("signed nonce %d, current %d: %w", nonce, pos.Nonce, model.ErrPermitNonceMismatch)
		}

		digest := l.Digest(positionID, operator, nonce, expiry)
		signer, err := l.recover.Recover(digest, sig)
		if err != nil {
			return fmt.Errorf("recover signer: %w: %v", model.ErrPermitInvalidSignature, err)
		}
		if signer != owner {
			return fmt.Errorf("signer %s is not owner %s: %w", signer.Hex(), owner.Hex(), model.ErrPermitInvalidSignature)
		}

		pos.Operator = operator
		pos.Nonce++
		return nil
	})
}

// NoteTransfer advances the replay counter and clears the operator when the
// position's ownership identity changes hands, so signatures drafted against
// the previous owner can never be consumed.
func (l *Ledger) NoteTransfer(positionID uint64) error {
	return l.store.Update(positionID, func(pos *model.Position) error {
		pos.Nonce++
		pos.Operator = common.Address{}
		return nil
	})
}

// IsAuthorized reports whether the caller is the owner or the currently
// delegated operator.
func (l *Ledger) IsAuthorized(positionID uint64, caller common.Address) (bool, error) {
	owner, err := l.owners.OwnerOf(positionID)
	if err != nil {
		return false, err
	}
	if caller == owner {
		return true, nil
	}

	pos, err := l.store.Get(positionID)
	if err != nil {
		return false, err
	}
	return pos.Operator != (common.Address{}) && pos.Operator == caller, nil
}
