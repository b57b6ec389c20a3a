// Package pool defines the external collaborator contracts the ledger
// consumes: the AMM pool itself and the factory that deploys it. The core
// never reaches past these interfaces; the pool's tick and swap math stays on
// the other side.
package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Range addresses one price range within one pool.
type Range struct {
	Pool      common.Address
	TickLower int32
	TickUpper int32
}

// Client is the pool-side effect surface.
type Client interface {
	// AddLiquidity commits amount units over the range and returns the token
	// amounts the pool charged.
	AddLiquidity(ctx context.Context, rng Range, amount *uint256.Int) (*uint256.Int, *uint256.Int, error)
	// RemoveLiquidity withdraws amount units and returns the token amounts now
	// owed to the range. Nothing is transferred yet.
	RemoveLiquidity(ctx context.Context, rng Range, amount *uint256.Int) (*uint256.Int, *uint256.Int, error)
	// TransferOwed pays out up to max0/max1 of the range's owed tokens to the
	// recipient and returns the amounts sent.
	TransferOwed(ctx context.Context, recipient common.Address, rng Range, max0, max1 *uint256.Int) (*uint256.Int, *uint256.Int, error)
	// CurrentFeeGrowth returns the pool's fee-growth accumulators for the
	// range, in X128 units per unit of liquidity.
	CurrentFeeGrowth(ctx context.Context, rng Range) (*uint256.Int, *uint256.Int, error)
}

// Factory deploys and initializes pools.
type Factory interface {
	CreatePool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error)
	// LookupPool reports the pool for the pair, and whether it exists at all.
	LookupPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error)
	InitializePool(ctx context.Context, poolAddr common.Address, sqrtPriceX96 *uint256.Int) error
	IsInitialized(ctx context.Context, poolAddr common.Address) (bool, error)
}
