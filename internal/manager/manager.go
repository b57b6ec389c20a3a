// Package manager orchestrates every position mutation: it validates inputs,
// settles fees, invokes the external pool, and writes through the registry.
// Each operation commits fully or leaves no trace.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionLedger/internal/fees"
	"positionLedger/internal/model"
	"positionLedger/internal/permit"
	"positionLedger/internal/pool"
	"positionLedger/internal/registry"
	"positionLedger/internal/resolver"
	"positionLedger/internal/storage"
	"positionLedger/internal/token"
)

// Deps wires the manager's collaborators.
type Deps struct {
	Registry  *registry.Registry
	Lifecycle *token.Lifecycle
	Permits   *permit.Ledger
	Resolver  *resolver.Resolver
	Pool      pool.Client
	Journal   storage.Journal
	Logger    *zap.Logger
}

// Manager is the liquidity controller.
type Manager struct {
	registry  *registry.Registry
	lifecycle *token.Lifecycle
	permits   *permit.Ledger
	resolver  *resolver.Resolver
	pool      pool.Client
	journal   storage.Journal
	logger    *zap.Logger
	now       func() time.Time
}

func New(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry:  deps.Registry,
		lifecycle: deps.Lifecycle,
		permits:   deps.Permits,
		resolver:  deps.Resolver,
		pool:      deps.Pool,
		journal:   deps.Journal,
		logger:    logger,
		now:       time.Now,
	}
}

// MintParams are the inputs for creating a new position.
type MintParams struct {
	AssetX     common.Address
	AssetY     common.Address
	Fee        uint32
	TickLower  int32
	TickUpper  int32
	Amount     *uint256.Int
	Amount0Max *uint256.Int
	Amount1Max *uint256.Int
	Recipient  common.Address
	Deadline   uint64
}

// MintResult reports the new identifier and the amounts the pool charged.
type MintResult struct {
	PositionID uint64
	Amount0    *uint256.Int
	Amount1    *uint256.Int
}

// Mint creates a position over an existing, initialized pool. The pool is
// never auto-initialized here; callers run EnsurePool first.
func (m *Manager) Mint(ctx context.Context, p MintParams) (MintResult, error) {
	if err := m.checkDeadline(p.Deadline); err != nil {
		return MintResult{}, err
	}
	if err := validateRange(p.Fee, p.TickLower, p.TickUpper); err != nil {
		return MintResult{}, err
	}
	if p.Recipient == (common.Address{}) {
		return MintResult{}, fmt.Errorf("zero recipient")
	}
	if p.Amount == nil || p.Amount.IsZero() {
		return MintResult{}, fmt.Errorf("zero liquidity amount")
	}

	poolAddr, err := m.resolver.RequireInitialized(ctx, p.AssetX, p.AssetY, p.Fee)
	if err != nil {
		return MintResult{}, err
	}
	rng := pool.Range{Pool: poolAddr, TickLower: p.TickLower, TickUpper: p.TickUpper}

	amount0, amount1, err := m.pool.AddLiquidity(ctx, rng, p.Amount)
	if err != nil {
		return MintResult{}, fmt.Errorf("add liquidity: %w", err)
	}
	if exceedsMax(amount0, p.Amount0Max) || exceedsMax(amount1, p.Amount1Max) {
		return MintResult{}, fmt.Errorf("charged (%s, %s): %w", amount0.Dec(), amount1.Dec(), model.ErrSlippageExceeded)
	}

	growth0, growth1, err := m.pool.CurrentFeeGrowth(ctx, rng)
	if err != nil {
		return MintResult{}, fmt.Errorf("fee growth: %w", err)
	}

	key := model.NewPoolKey(p.AssetX, p.AssetY, p.Fee)
	pos := model.Position{
		Token0:    key.Token0,
		Token1:    key.Token1,
		Fee:       key.Fee,
		TickLower: p.TickLower,
		TickUpper: p.TickUpper,
	}
	pos.Liquidity.Set(p.Amount)
	pos.FeeGrowthInside0.Set(growth0)
	pos.FeeGrowthInside1.Set(growth1)

	id, err := m.registry.Create(pos)
	if err != nil {
		return MintResult{}, err
	}
	if err := m.lifecycle.Bind(id, p.Recipient); err != nil {
		if discardErr := m.registry.Discard(id); discardErr != nil {
			m.logger.Warn("discard after failed bind",
				zap.Uint64("position_id", id),
				zap.Error(discardErr),
			)
		}
		return MintResult{}, fmt.Errorf("bind position %d: %w", id, err)
	}

	m.logger.Info("position minted",
		zap.Uint64("position_id", id),
		zap.String("pool", poolAddr.Hex()),
		zap.String("liquidity", p.Amount.Dec()),
	)
	m.journalOp(ctx, model.OperationRecord{
		Op:         "mint",
		PositionID: id,
		Pool:       poolAddr.Hex(),
		Recipient:  p.Recipient.Hex(),
		Liquidity:  p.Amount.Dec(),
		Amount0:    amount0.Dec(),
		Amount1:    amount1.Dec(),
	})

	return MintResult{PositionID: id, Amount0: amount0, Amount1: amount1}, nil
}

// IncreaseParams are the inputs for adding liquidity to a position.
type IncreaseParams struct {
	PositionID uint64
	Amount     *uint256.Int
	Amount0Max *uint256.Int
	Amount1Max *uint256.Int
	Deadline   uint64
}

// IncreaseLiquidity adds liquidity to an existing position. Fees are settled
// with the pre-change liquidity before the pool is touched.
func (m *Manager) IncreaseLiquidity(ctx context.Context, caller common.Address, p IncreaseParams) (*uint256.Int, *uint256.Int, error) {
	if err := m.checkDeadline(p.Deadline); err != nil {
		return nil, nil, err
	}
	if err := m.requireAuthorized(p.PositionID, caller); err != nil {
		return nil, nil, err
	}
	if p.Amount == nil || p.Amount.IsZero() {
		return nil, nil, fmt.Errorf("zero liquidity amount")
	}

	var out0, out1 *uint256.Int
	var poolAddr common.Address
	err := m.registry.Update(p.PositionID, func(pos *model.Position) error {
		rng := m.rangeOf(pos)
		poolAddr = rng.Pool

		growth0, growth1, err := m.pool.CurrentFeeGrowth(ctx, rng)
		if err != nil {
			return fmt.Errorf("fee growth: %w", err)
		}
		fees.Settle(pos, growth0, growth1)

		amount0, amount1, err := m.pool.AddLiquidity(ctx, rng, p.Amount)
		if err != nil {
			return fmt.Errorf("add liquidity: %w", err)
		}
		if exceedsMax(amount0, p.Amount0Max) || exceedsMax(amount1, p.Amount1Max) {
			return fmt.Errorf("charged (%s, %s): %w", amount0.Dec(), amount1.Dec(), model.ErrSlippageExceeded)
		}

		pos.Liquidity.Add(&pos.Liquidity, p.Amount)
		out0, out1 = amount0, amount1
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("liquidity increased",
		zap.Uint64("position_id", p.PositionID),
		zap.String("amount", p.Amount.Dec()),
	)
	m.journalOp(ctx, model.OperationRecord{
		Op:         "increase",
		PositionID: p.PositionID,
		Pool:       poolAddr.Hex(),
		Caller:     caller.Hex(),
		Liquidity:  p.Amount.Dec(),
		Amount0:    out0.Dec(),
		Amount1:    out1.Dec(),
	})
	return out0, out1, nil
}

// DecreaseParams are the inputs for removing liquidity from a position.
type DecreaseParams struct {
	PositionID uint64
	Amount     *uint256.Int
	Amount0Min *uint256.Int
	Amount1Min *uint256.Int
	Deadline   uint64
}

// DecreaseLiquidity removes liquidity and credits the withdrawn amounts to
// the position's accrued balances. Nothing is transferred until Collect.
func (m *Manager) DecreaseLiquidity(ctx context.Context, caller common.Address, p DecreaseParams) (*uint256.Int, *uint256.Int, error) {
	if err := m.checkDeadline(p.Deadline); err != nil {
		return nil, nil, err
	}
	if err := m.requireAuthorized(p.PositionID, caller); err != nil {
		return nil, nil, err
	}
	if p.Amount == nil || p.Amount.IsZero() {
		return nil, nil, fmt.Errorf("zero liquidity amount")
	}

	var out0, out1 *uint256.Int
	var poolAddr common.Address
	err := m.registry.Update(p.PositionID, func(pos *model.Position) error {
		if p.Amount.Cmp(&pos.Liquidity) > 0 {
			return fmt.Errorf("remove %s of %s: %w", p.Amount.Dec(), pos.Liquidity.Dec(), model.ErrInsufficientLiquidity)
		}

		rng := m.rangeOf(pos)
		poolAddr = rng.Pool

		growth0, growth1, err := m.pool.CurrentFeeGrowth(ctx, rng)
		if err != nil {
			return fmt.Errorf("fee growth: %w", err)
		}
		fees.Settle(pos, growth0, growth1)

		owed0, owed1, err := m.pool.RemoveLiquidity(ctx, rng, p.Amount)
		if err != nil {
			return fmt.Errorf("remove liquidity: %w", err)
		}
		if belowMin(owed0, p.Amount0Min) || belowMin(owed1, p.Amount1Min) {
			return fmt.Errorf("received (%s, %s): %w", owed0.Dec(), owed1.Dec(), model.ErrSlippageExceeded)
		}

		pos.Liquidity.Sub(&pos.Liquidity, p.Amount)
		pos.TokensOwed0.Add(&pos.TokensOwed0, owed0)
		pos.TokensOwed1.Add(&pos.TokensOwed1, owed1)
		out0, out1 = owed0, owed1
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("liquidity decreased",
		zap.Uint64("position_id", p.PositionID),
		zap.String("amount", p.Amount.Dec()),
	)
	m.journalOp(ctx, model.OperationRecord{
		Op:         "decrease",
		PositionID: p.PositionID,
		Pool:       poolAddr.Hex(),
		Caller:     caller.Hex(),
		Liquidity:  p.Amount.Dec(),
		Amount0:    out0.Dec(),
		Amount1:    out1.Dec(),
	})
	return out0, out1, nil
}

// CollectParams are the inputs for draining accrued balances.
type CollectParams struct {
	PositionID uint64
	Recipient  common.Address
	Amount0Max *uint256.Int
	Amount1Max *uint256.Int
}

// Collect settles outstanding fees, drains up to the given maxima from the
// accrued balances, and has the pool pay the recipient. The accounting
// decrement and the transfer commit together or not at all.
func (m *Manager) Collect(ctx context.Context, caller common.Address, p CollectParams) (*uint256.Int, *uint256.Int, error) {
	if err := m.requireAuthorized(p.PositionID, caller); err != nil {
		return nil, nil, err
	}
	if p.Recipient == (common.Address{}) {
		return nil, nil, fmt.Errorf("zero recipient")
	}

	var out0, out1 *uint256.Int
	var poolAddr common.Address
	err := m.registry.Update(p.PositionID, func(pos *model.Position) error {
		rng := m.rangeOf(pos)
		poolAddr = rng.Pool

		growth0, growth1, err := m.pool.CurrentFeeGrowth(ctx, rng)
		if err != nil {
			return fmt.Errorf("fee growth: %w", err)
		}
		fees.Settle(pos, growth0, growth1)

		paid0, paid1 := fees.Payout(pos, p.Amount0Max, p.Amount1Max)
		if paid0.IsZero() && paid1.IsZero() {
			out0, out1 = paid0, paid1
			return nil
		}

		sent0, sent1, err := m.pool.TransferOwed(ctx, p.Recipient, rng, paid0, paid1)
		if err != nil {
			return fmt.Errorf("transfer owed: %w", err)
		}
		if sent0.Cmp(paid0) != 0 || sent1.Cmp(paid1) != 0 {
			return fmt.Errorf("pool transferred (%s, %s), expected (%s, %s)",
				sent0.Dec(), sent1.Dec(), paid0.Dec(), paid1.Dec())
		}

		out0, out1 = paid0, paid1
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("fees collected",
		zap.Uint64("position_id", p.PositionID),
		zap.String("amount0", out0.Dec()),
		zap.String("amount1", out1.Dec()),
	)
	m.journalOp(ctx, model.OperationRecord{
		Op:         "collect",
		PositionID: p.PositionID,
		Pool:       poolAddr.Hex(),
		Caller:     caller.Hex(),
		Recipient:  p.Recipient.Hex(),
		Amount0:    out0.Dec(),
		Amount1:    out1.Dec(),
	})
	return out0, out1, nil
}

// Burn destroys an empty, fully drained position and releases its identity
// binding. The identifier is never reused.
func (m *Manager) Burn(ctx context.Context, caller common.Address, positionID uint64) error {
	if err := m.requireAuthorized(positionID, caller); err != nil {
		return err
	}

	if err := m.registry.Remove(positionID); err != nil {
		return err
	}
	if err := m.lifecycle.Unbind(positionID); err != nil {
		return fmt.Errorf("unbind position %d: %w", positionID, err)
	}

	m.logger.Info("position burned", zap.Uint64("position_id", positionID))
	m.journalOp(ctx, model.OperationRecord{
		Op:         "burn",
		PositionID: positionID,
		Caller:     caller.Hex(),
	})
	return nil
}

// Positions returns the full record for the identifier.
func (m *Manager) Positions(positionID uint64) (model.Position, error) {
	return m.registry.Get(positionID)
}

func (m *Manager) requireAuthorized(positionID uint64, caller common.Address) error {
	ok, err := m.permits.IsAuthorized(positionID, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("caller %s: %w", caller.Hex(), model.ErrUnauthorized)
	}
	return nil
}

func (m *Manager) checkDeadline(deadline uint64) error {
	if now := uint64(m.now().Unix()); now > deadline {
		return fmt.Errorf("now %d past %d: %w", now, deadline, model.ErrDeadlineExpired)
	}
	return nil
}

func (m *Manager) rangeOf(pos *model.Position) pool.Range {
	return pool.Range{
		Pool:      m.resolver.DeriveIdentity(pos.Token0, pos.Token1, pos.Fee),
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
	}
}

func (m *Manager) journalOp(ctx context.Context, rec model.OperationRecord) {
	if m.journal == nil {
		return
	}
	rec.Timestamp = uint64(m.now().Unix())
	if err := m.journal.Append(ctx, []model.OperationRecord{rec}); err != nil {
		m.logger.Warn("journal append failed", zap.String("op", rec.Op), zap.Error(err))
	}
}

func validateRange(fee uint32, tickLower, tickUpper int32) error {
	if _, ok := model.TickSpacings[fee]; !ok {
		return fmt.Errorf("unknown fee tier %d: %w", fee, model.ErrInvalidTickRange)
	}
	if tickLower >= tickUpper {
		return fmt.Errorf("ticks [%d, %d): %w", tickLower, tickUpper, model.ErrInvalidTickRange)
	}
	if tickLower < model.MinTick || tickUpper > model.MaxTick {
		return fmt.Errorf("ticks out of bounds [%d, %d]: %w", tickLower, tickUpper, model.ErrInvalidTickRange)
	}
	return nil
}

func exceedsMax(amount, max *uint256.Int) bool {
	if max == nil {
		return !amount.IsZero()
	}
	return amount.Cmp(max) > 0
}

func belowMin(amount, min *uint256.Int) bool {
	if min == nil {
		return false
	}
	return amount.Cmp(min) < 0
}
