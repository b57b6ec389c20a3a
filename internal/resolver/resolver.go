// Package resolver maps canonical asset pairs to deterministic pool
// identities and makes sure a pool exists and is initialized before the
// ledger touches it.
package resolver

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionLedger/internal/model"
	"positionLedger/internal/pool"
)

// Resolver derives pool identities against a fixed factory context and drives
// idempotent pool creation through the factory client.
type Resolver struct {
	factoryAddr  common.Address
	initCodeHash common.Hash
	factory      pool.Factory
	logger       *zap.Logger
}

func New(factoryAddr common.Address, initCodeHash common.Hash, factory pool.Factory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		factoryAddr:  factoryAddr,
		initCodeHash: initCodeHash,
		factory:      factory,
		logger:       logger,
	}
}

// DeriveIdentity returns the deterministic pool address for the pair. The
// assets are canonically ordered first, so both input orderings resolve to
// the same identity.
func (r *Resolver) DeriveIdentity(assetX, assetY common.Address, fee uint32) common.Address {
	key := model.NewPoolKey(assetX, assetY, fee)

	var feeWord [32]byte
	binary.BigEndian.PutUint32(feeWord[28:], key.Fee)
	salt := crypto.Keccak256(
		common.LeftPadBytes(key.Token0.Bytes(), 32),
		common.LeftPadBytes(key.Token1.Bytes(), 32),
		feeWord[:],
	)

	hash := crypto.Keccak256(
		[]byte{0xff},
		r.factoryAddr.Bytes(),
		salt,
		r.initCodeHash.Bytes(),
	)
	return common.BytesToAddress(hash[12:])
}

// EnsurePool creates the pool if it does not exist and initializes it if it
// is uninitialized. Already-initialized pools are returned unchanged. An
// absent or nil initial price fails with ErrInvalidPoolState only when
// initialization is actually required.
func (r *Resolver) EnsurePool(ctx context.Context, assetX, assetY common.Address, fee uint32, sqrtPriceX96 *uint256.Int) (common.Address, error) {
	addr, exists, err := r.factory.LookupPool(ctx, assetX, assetY, fee)
	if err != nil {
		return common.Address{}, fmt.Errorf("lookup pool: %w", err)
	}

	if !exists {
		if sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
			return common.Address{}, fmt.Errorf("new pool needs an initial price: %w", model.ErrInvalidPoolState)
		}
		addr, err = r.factory.CreatePool(ctx, assetX, assetY, fee)
		if err != nil {
			return common.Address{}, fmt.Errorf("create pool: %w", err)
		}
		if err := r.factory.InitializePool(ctx, addr, sqrtPriceX96); err != nil {
			return common.Address{}, fmt.Errorf("initialize pool: %w", err)
		}
		r.logger.Info("pool created",
			zap.String("pool", addr.Hex()),
			zap.Uint32("fee", fee),
		)
		return addr, nil
	}

	initialized, err := r.factory.IsInitialized(ctx, addr)
	if err != nil {
		return common.Address{}, fmt.Errorf("pool state: %w", err)
	}
	if !initialized {
		if sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
			return common.Address{}, fmt.Errorf("uninitialized pool needs a price: %w", model.ErrInvalidPoolState)
		}
		if err := r.factory.InitializePool(ctx, addr, sqrtPriceX96); err != nil {
			return common.Address{}, fmt.Errorf("initialize pool: %w", err)
		}
		r.logger.Info("pool initialized", zap.String("pool", addr.Hex()))
	}
	return addr, nil
}

// RequireInitialized resolves the pair to an existing, initialized pool.
// Minting never auto-initializes; callers go through EnsurePool first.
func (r *Resolver) RequireInitialized(ctx context.Context, assetX, assetY common.Address, fee uint32) (common.Address, error) {
	addr, exists, err := r.factory.LookupPool(ctx, assetX, assetY, fee)
	if err != nil {
		return common.Address{}, fmt.Errorf("lookup pool: %w", err)
	}
	if !exists {
		return common.Address{}, fmt.Errorf("pool does not exist: %w", model.ErrInvalidPoolState)
	}
	initialized, err := r.factory.IsInitialized(ctx, addr)
	if err != nil {
		return common.Address{}, fmt.Errorf("pool state: %w", err)
	}
	if !initialized {
		return common.Address{}, fmt.Errorf("pool not initialized: %w", model.ErrInvalidPoolState)
	}
	return addr, nil
}
