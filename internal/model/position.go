package model

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is the accounting record behind one tokenized liquidity position.
// The registry owns these records; everything else works on copies.
type Position struct {
	// Nonce is the permit replay counter. It advances on every successful
	// delegation and on every ownership transfer, never backwards.
	Nonce uint64
	// Operator is the currently delegated controller, zero when unset.
	Operator common.Address

	Token0    common.Address
	Token1    common.Address
	Fee       uint32
	TickLower int32
	TickUpper int32

	Liquidity uint256.Int

	// Fee-growth checkpoints, in the pool accumulator's X128 units, taken at
	// the last settlement. Only ever advanced.
	FeeGrowthInside0 uint256.Int
	FeeGrowthInside1 uint256.Int

	// Earned but not yet collected token amounts.
	TokensOwed0 uint256.Int
	TokensOwed1 uint256.Int
}

// Empty reports whether the position holds no liquidity and owes nothing.
func (p *Position) Empty() bool {
	return p.Liquidity.IsZero() && p.TokensOwed0.IsZero() && p.TokensOwed1.IsZero()
}

// PoolKey identifies one pool by its canonical asset pair and fee tier.
type PoolKey struct {
	Token0 common.Address
	Token1 common.Address
	Fee    uint32
}

// NewPoolKey canonically orders the asset pair so that both input orderings
// produce the same key.
func NewPoolKey(assetX, assetY common.Address, fee uint32) PoolKey {
	if bytes.Compare(assetX[:], assetY[:]) > 0 {
		assetX, assetY = assetY, assetX
	}
	return PoolKey{Token0: assetX, Token1: assetY, Fee: fee}
}
