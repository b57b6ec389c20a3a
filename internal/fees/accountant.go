// Package fees folds pool fee-growth accumulator deltas into per-position
// accrued balances. All arithmetic wraps over the accumulator's 256-bit
// fixed-point domain, matching the pool's own overflow behavior.
package fees

import (
	"github.com/holiman/uint256"

	"positionLedger/internal/model"
)

var maxUint128 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")

// Settle computes the fees earned by the position since its last checkpoint
// and folds them into the accrued balances. It must run with the liquidity
// that was in effect before any pending liquidity change; settling after the
// change would attribute old fee growth to the new amount.
func Settle(pos *model.Position, growth0, growth1 *uint256.Int) {
	delta0 := new(uint256.Int).Sub(growth0, &pos.FeeGrowthInside0)
	delta1 := new(uint256.Int).Sub(growth1, &pos.FeeGrowthInside1)

	pos.TokensOwed0.Add(&pos.TokensOwed0, mulShift128(delta0, &pos.Liquidity))
	pos.TokensOwed1.Add(&pos.TokensOwed1, mulShift128(delta1, &pos.Liquidity))

	pos.FeeGrowthInside0.Set(growth0)
	pos.FeeGrowthInside1.Set(growth1)
}

// Payout drains up to max0/max1 from the accrued balances and returns the
// amounts actually paid. Balances never underflow.
func Payout(pos *model.Position, max0, max1 *uint256.Int) (*uint256.Int, *uint256.Int) {
	paid0 := minU256(&pos.TokensOwed0, max0)
	paid1 := minU256(&pos.TokensOwed1, max1)

	pos.TokensOwed0.Sub(&pos.TokensOwed0, paid0)
	pos.TokensOwed1.Sub(&pos.TokensOwed1, paid1)

	return paid0, paid1
}

// mulShift128 returns floor(a*b / 2^128) mod 2^256, the X128 fixed-point
// product used to convert fee growth per unit of liquidity into token amounts.
// Both operands are split into 128-bit halves so every partial product fits
// 256 bits and no intermediate bits are lost before the shift.
func mulShift128(a, b *uint256.Int) *uint256.Int {
	aHi := new(uint256.Int).Rsh(a, 128)
	aLo := new(uint256.Int).And(a, maxUint128)
	bHi := new(uint256.Int).Rsh(b, 128)
	bLo := new(uint256.Int).And(b, maxUint128)

	out := new(uint256.Int).Mul(aHi, b)
	mid := new(uint256.Int).Mul(aLo, bHi)
	low := new(uint256.Int).Mul(aLo, bLo)
	out.Add(out, mid)
	return out.Add(out, low.Rsh(low, 128))
}

func minU256(a, b *uint256.Int) *uint256.Int {
	if b == nil {
		return new(uint256.Int)
	}
	if a.Cmp(b) < 0 {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
