package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionLedger/internal/model"
)

// Sim is an in-memory pool and factory honoring the collaborator contracts.
// Fee growth is advanced explicitly, so tests and the demo drive the exact
// accumulator windows they want to observe. Tick-level accounting is
// deliberately flat: the global accumulators stand in for the in-range ones.
type Sim struct {
	derive func(tokenA, tokenB common.Address, fee uint32) common.Address

	mu    sync.Mutex
	pools map[common.Address]*simPool
	// Transfers records every TransferOwed payout, newest last.
	Transfers []SimTransfer
}

type simPool struct {
	key          model.PoolKey
	initialized  bool
	sqrtPriceX96 uint256.Int
	feeGrowth0   uint256.Int
	feeGrowth1   uint256.Int
	liquidity    map[rangeKey]*uint256.Int
}

type rangeKey struct {
	tickLower int32
	tickUpper int32
}

// SimTransfer is one recorded TransferOwed payout.
type SimTransfer struct {
	Pool      common.Address
	Recipient common.Address
	Amount0   uint256.Int
	Amount1   uint256.Int
}

// NewSim builds a simulator whose pool addresses come from the given
// derivation, so they line up with the resolver's identities.
func NewSim(derive func(tokenA, tokenB common.Address, fee uint32) common.Address) *Sim {
	return &Sim{
		derive: derive,
		pools:  make(map[common.Address]*simPool),
	}
}

func (s *Sim) CreatePool(_ context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	key := model.NewPoolKey(tokenA, tokenB, fee)
	addr := s.derive(key.Token0, key.Token1, key.Fee)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[addr]; ok {
		return addr, fmt.Errorf("pool %s already exists", addr.Hex())
	}
	s.pools[addr] = &simPool{
		key:       key,
		liquidity: make(map[rangeKey]*uint256.Int),
	}
	return addr, nil
}

func (s *Sim) LookupPool(_ context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error) {
	key := model.NewPoolKey(tokenA, tokenB, fee)
	addr := s.derive(key.Token0, key.Token1, key.Fee)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pools[addr]
	return addr, ok, nil
}

func (s *Sim) InitializePool(_ context.Context, poolAddr common.Address, sqrtPriceX96 *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolAddr]
	if !ok {
		return fmt.Errorf("pool %s does not exist", poolAddr.Hex())
	}
	if p.initialized {
		return fmt.Errorf("pool %s already initialized", poolAddr.Hex())
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
		return fmt.Errorf("zero initial price")
	}
	p.sqrtPriceX96.Set(sqrtPriceX96)
	p.initialized = true
	return nil
}

func (s *Sim) IsInitialized(_ context.Context, poolAddr common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolAddr]
	if !ok {
		return false, fmt.Errorf("pool %s does not exist", poolAddr.Hex())
	}
	return p.initialized, nil
}

func (s *Sim) AddLiquidity(_ context.Context, rng Range, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.livePool(rng.Pool)
	if err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, nil, fmt.Errorf("zero liquidity amount")
	}

	key := rangeKey{rng.TickLower, rng.TickUpper}
	cur := p.liquidity[key]
	if cur == nil {
		cur = new(uint256.Int)
		p.liquidity[key] = cur
	}
	cur.Add(cur, amount)

	// Flat-price charge model: one token unit of each asset per liquidity unit.
	return new(uint256.Int).Set(amount), new(uint256.Int).Set(amount), nil
}

func (s *Sim) RemoveLiquidity(_ context.Context, rng Range, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.livePool(rng.Pool)
	if err != nil {
		return nil, nil, err
	}

	key := rangeKey{rng.TickLower, rng.TickUpper}
	cur := p.liquidity[key]
	if cur == nil || cur.Cmp(amount) < 0 {
		return nil, nil, fmt.Errorf("range holds less than %s liquidity", amount.Dec())
	}
	cur.Sub(cur, amount)

	return new(uint256.Int).Set(amount), new(uint256.Int).Set(amount), nil
}

func (s *Sim) TransferOwed(_ context.Context, recipient common.Address, rng Range, max0, max1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.livePool(rng.Pool); err != nil {
		return nil, nil, err
	}

	paid0 := new(uint256.Int)
	paid1 := new(uint256.Int)
	if max0 != nil {
		paid0.Set(max0)
	}
	if max1 != nil {
		paid1.Set(max1)
	}

	rec := SimTransfer{Pool: rng.Pool, Recipient: recipient}
	rec.Amount0.Set(paid0)
	rec.Amount1.Set(paid1)
	s.Transfers = append(s.Transfers, rec)

	return paid0, paid1, nil
}

func (s *Sim) CurrentFeeGrowth(_ context.Context, rng Range) (*uint256.Int, *uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.livePool(rng.Pool)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Set(&p.feeGrowth0), new(uint256.Int).Set(&p.feeGrowth1), nil
}

// AdvanceFeeGrowth bumps the pool's accumulators by the given X128 deltas,
// standing in for swap activity.
func (s *Sim) AdvanceFeeGrowth(poolAddr common.Address, delta0, delta1 *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolAddr]
	if !ok {
		return fmt.Errorf("pool %s does not exist", poolAddr.Hex())
	}
	if delta0 != nil {
		p.feeGrowth0.Add(&p.feeGrowth0, delta0)
	}
	if delta1 != nil {
		p.feeGrowth1.Add(&p.feeGrowth1, delta1)
	}
	return nil
}

func (s *Sim) livePool(addr common.Address) (*simPool, error) {
	p, ok := s.pools[addr]
	if !ok {
		return nil, fmt.Errorf("pool %s does not exist", addr.Hex())
	}
	if !p.initialized {
		return nil, fmt.Errorf("pool %s not initialized", addr.Hex())
	}
	return p, nil
}
