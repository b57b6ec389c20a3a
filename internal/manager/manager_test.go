package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"positionLedger/internal/model"
	"positionLedger/internal/permit"
	"positionLedger/internal/pool"
	"positionLedger/internal/registry"
	"positionLedger/internal/resolver"
	"positionLedger/internal/token"
)

var (
	factoryAddr = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	codeHash    = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")
	assetA      = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assetB      = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	owner       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	stranger    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fixture struct {
	m        *Manager
	sim      *pool.Sim
	reg      *registry.Registry
	life     *token.Lifecycle
	permits  *permit.Ledger
	poolAddr common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := registry.New()
	life := token.NewLifecycle(nil)
	permits := permit.NewLedger(56, factoryAddr, reg, life, permit.EthRecoverer{}, nil)
	life.OnTransfer(permits.NoteTransfer)

	res := resolver.New(factoryAddr, codeHash, nil, nil)
	sim := pool.NewSim(func(a, b common.Address, fee uint32) common.Address {
		return res.DeriveIdentity(a, b, fee)
	})
	res = resolver.New(factoryAddr, codeHash, sim, nil)

	price := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	poolAddr, err := res.EnsurePool(context.Background(), assetA, assetB, 3000, price)
	if err != nil {
		t.Fatalf("ensure pool: %v", err)
	}

	m := New(Deps{
		Registry:  reg,
		Lifecycle: life,
		Permits:   permits,
		Resolver:  res,
		Pool:      sim,
	})

	return &fixture{m: m, sim: sim, reg: reg, life: life, permits: permits, poolAddr: poolAddr}
}

func futureDeadline() uint64 {
	return uint64(time.Now().Add(time.Hour).Unix())
}

func pastDeadline() uint64 {
	return uint64(time.Now().Add(-time.Hour).Unix())
}

func huge() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), 200)
}

func growthX128(units uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(units), 128)
}

func (f *fixture) mint(t *testing.T, amount uint64) uint64 {
	t.Helper()
	res, err := f.m.Mint(context.Background(), MintParams{
		AssetX:     assetA,
		AssetY:     assetB,
		Fee:        3000,
		TickLower:  -100,
		TickUpper:  100,
		Amount:     uint256.NewInt(amount),
		Amount0Max: huge(),
		Amount1Max: huge(),
		Recipient:  owner,
		Deadline:   futureDeadline(),
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return res.PositionID
}

func TestMintScenario(t *testing.T) {
	f := newFixture(t)

	res, err := f.m.Mint(context.Background(), MintParams{
		AssetX:     assetB, // reversed on purpose
		AssetY:     assetA,
		Fee:        3000,
		TickLower:  -100,
		TickUpper:  100,
		Amount:     uint256.NewInt(1000),
		Amount0Max: huge(),
		Amount1Max: huge(),
		Recipient:  owner,
		Deadline:   futureDeadline(),
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if res.Amount0.IsZero() && res.Amount1.IsZero() {
		t.Fatalf("mint charged nothing")
	}
	if res.Amount0.Cmp(huge()) > 0 || res.Amount1.Cmp(huge()) > 0 {
		t.Fatalf("mint exceeded maxima: (%s, %s)", res.Amount0.Dec(), res.Amount1.Dec())
	}

	pos, err := f.m.Positions(res.PositionID)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if pos.Liquidity.Uint64() != 1000 {
		t.Fatalf("liquidity = %s, want 1000", pos.Liquidity.Dec())
	}
	if pos.Token0 != assetA || pos.Token1 != assetB {
		t.Fatalf("asset pair not canonical: %s / %s", pos.Token0.Hex(), pos.Token1.Hex())
	}

	got, err := f.life.OwnerOf(res.PositionID)
	if err != nil || got != owner {
		t.Fatalf("owner = %s err=%v, want %s", got.Hex(), err, owner.Hex())
	}
}

func TestMintDeadlineExpired(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Mint(context.Background(), MintParams{
		AssetX: assetA, AssetY: assetB, Fee: 3000,
		TickLower: -100, TickUpper: 100,
		Amount: uint256.NewInt(10), Amount0Max: huge(), Amount1Max: huge(),
		Recipient: owner, Deadline: pastDeadline(),
	})
	if !errors.Is(err, model.ErrDeadlineExpired) {
		t.Fatalf("expected ErrDeadlineExpired, got %v", err)
	}
}

func TestMintInvalidTickRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name                 string
		fee                  uint32
		tickLower, tickUpper int32
	}{
		{"inverted", 3000, 100, -100},
		{"equal", 3000, 60, 60},
		{"unknown fee tier", 1234, -100, 100},
		{"below min tick", 3000, model.MinTick - 1, 100},
	}
	for _, tc := range cases {
		_, err := f.m.Mint(ctx, MintParams{
			AssetX: assetA, AssetY: assetB, Fee: tc.fee,
			TickLower: tc.tickLower, TickUpper: tc.tickUpper,
			Amount: uint256.NewInt(10), Amount0Max: huge(), Amount1Max: huge(),
			Recipient: owner, Deadline: futureDeadline(),
		})
		if !errors.Is(err, model.ErrInvalidTickRange) {
			t.Fatalf("%s: expected ErrInvalidTickRange, got %v", tc.name, err)
		}
	}
}

func TestMintRequiresInitializedPool(t *testing.T) {
	f := newFixture(t)

	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	_, err := f.m.Mint(context.Background(), MintParams{
		AssetX: assetA, AssetY: other, Fee: 3000,
		TickLower: -100, TickUpper: 100,
		Amount: uint256.NewInt(10), Amount0Max: huge(), Amount1Max: huge(),
		Recipient: owner, Deadline: futureDeadline(),
	})
	if !errors.Is(err, model.ErrInvalidPoolState) {
		t.Fatalf("expected ErrInvalidPoolState, got %v", err)
	}
}

func TestMintSlippage(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Mint(context.Background(), MintParams{
		AssetX: assetA, AssetY: assetB, Fee: 3000,
		TickLower: -100, TickUpper: 100,
		Amount:     uint256.NewInt(1000),
		Amount0Max: uint256.NewInt(500), // sim charges amount per asset
		Amount1Max: huge(),
		Recipient:  owner, Deadline: futureDeadline(),
	})
	if !errors.Is(err, model.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	if _, err := f.m.Positions(1); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("failed mint left a position behind: %v", err)
	}
}

func TestMintBindFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, 100)

	// Occupy the identifier the next mint will draw, so binding fails.
	if err := f.life.Bind(id+1, stranger); err != nil {
		t.Fatalf("pre-bind: %v", err)
	}

	_, err := f.m.Mint(context.Background(), MintParams{
		AssetX: assetA, AssetY: assetB, Fee: 3000,
		TickLower: -100, TickUpper: 100,
		Amount: uint256.NewInt(10), Amount0Max: huge(), Amount1Max: huge(),
		Recipient: owner, Deadline: futureDeadline(),
	})
	if err == nil {
		t.Fatal("expected mint to fail on bind")
	}

	if _, err := f.m.Positions(id + 1); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("failed mint left an orphaned record: %v", err)
	}
}

func TestIncreaseSettlesBeforeChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.mint(t, 1000)

	// 2 units of growth accrue under the original 1000 liquidity.
	if err := f.sim.AdvanceFeeGrowth(f.poolAddr, growthX128(2), growthX128(1)); err != nil {
		t.Fatalf("advance: %v", err)
	}

	_, _, err := f.m.IncreaseLiquidity(ctx, owner, IncreaseParams{
		PositionID: id,
		Amount:     uint256.NewInt(9000),
		Amount0Max: huge(), Amount1Max: huge(),
		Deadline: futureDeadline(),
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}

	pos, err := f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if pos.Liquidity.Uint64() != 10000 {
		t.Fatalf("liquidity = %s, want 10000", pos.Liquidity.Dec())
	}
	if pos.TokensOwed0.Uint64() != 2000 {
		t.Fatalf("owed0 = %s, want 2000 (settled at pre-change liquidity)", pos.TokensOwed0.Dec())
	}
	if pos.TokensOwed1.Uint64() != 1000 {
		t.Fatalf("owed1 = %s, want 1000", pos.TokensOwed1.Dec())
	}
}

func TestConsecutiveIncreasesAccrueExactSum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.mint(t, 100)

	if err := f.sim.AdvanceFeeGrowth(f.poolAddr, growthX128(3), nil); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, _, err := f.m.IncreaseLiquidity(ctx, owner, IncreaseParams{
		PositionID: id, Amount: uint256.NewInt(100),
		Amount0Max: huge(), Amount1Max: huge(), Deadline: futureDeadline(),
	}); err != nil {
		t.Fatalf("first increase: %v", err)
	}

	if err := f.sim.AdvanceFeeGrowth(f.poolAddr, growthX128(5), nil); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, _, err := f.m.IncreaseLiquidity(ctx, owner, IncreaseParams{
		PositionID: id, Amount: uint256.NewInt(100),
		Amount0Max: huge(), Amount1Max: huge(), Deadline: futureDeadline(),
	}); err != nil {
		t.Fatalf("second increase: %v", err)
	}

	pos, err := f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}

	// Window one: 3 units at liquidity 100. Window two: 5 units at 200.
	want := uint64(3*100 + 5*200)
	if pos.TokensOwed0.Uint64() != want {
		t.Fatalf("owed0 = %s, want %d: fee window skipped or double-counted", pos.TokensOwed0.Dec(), want)
	}
}

func TestIncreaseExpiredDeadlineNoMutation(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, 1000)

	before, err := f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}

	_, _, err = f.m.IncreaseLiquidity(context.Background(), owner, IncreaseParams{
		PositionID: id, Amount: uint256.NewInt(500),
		Amount0Max: huge(), Amount1Max: huge(), Deadline: pastDeadline(),
	})
	if !errors.Is(err, model.ErrDeadlineExpired) {
		t.Fatalf("expected ErrDeadlineExpired, got %v", err)
	}

	after, err := f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if before != after {
		t.Fatalf("registry mutated by failed operation:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestIncreaseUnauthorized(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, 1000)

	_, _, err := f.m.IncreaseLiquidity(context.Background(), stranger, IncreaseParams{
		PositionID: id, Amount: uint256.NewInt(1),
		Amount0Max: huge(), Amount1Max: huge(), Deadline: futureDeadline(),
	})
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPermittedOperatorCanMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signerOwner := crypto.PubkeyToAddress(key.PublicKey)

	res, err := f.m.Mint(ctx, MintParams{
		AssetX: assetA, AssetY: assetB, Fee: 3000,
		TickLower: -100, TickUpper: 100,
		Amount: uint256.NewInt(100), Amount0Max: huge(), Amount1Max: huge(),
		Recipient: signerOwner, Deadline: futureDeadline(),
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id := res.PositionID

	expiry := uint64(time.Now().Add(time.Hour).Unix())
	digest := f.permits.Digest(id, stranger, 0, expiry)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := f.permits.Authorize(id, stranger, 0, expiry, sig); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if _, _, err := f.m.IncreaseLiquidity(ctx, stranger, IncreaseParams{
		PositionID: id, Amount: uint256.NewInt(50),
		Amount0Max: huge(), Amount1Max: huge(), Deadline: futureDeadline(),
	}); err != nil {
		t.Fatalf("operator increase: %v", err)
	}
}

func TestDecreaseInsufficientLiquidity(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, 100)

	_, _, err := f.m.DecreaseLiquidity(context.Background(), owner, DecreaseParams{
		PositionID: id, Amount: uint256.NewInt(101),
		Amount0Min: new(uint256.Int), Amount1Min: new(uint256.Int),
		Deadline: futureDeadline(),
	})
	if !errors.Is(err, model.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestDecreaseSlippage(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, 100)

	_, _, err := f.m.DecreaseLiquidity(context.Background(), owner, DecreaseParams{
		PositionID: id, Amount: uint256.NewInt(100),
		Amount0Min: uint256.NewInt(101), // sim returns amount per asset
		Amount1Min: new(uint256.Int),
		Deadline:   futureDeadline(),
	})
	if !errors.Is(err, model.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
}

func TestDecreaseThenCollectDrains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.mint(t, 1000)

	if err := f.sim.AdvanceFeeGrowth(f.poolAddr, growthX128(1), growthX128(1)); err != nil {
		t.Fatalf("advance: %v", err)
	}

	out0, out1, err := f.m.DecreaseLiquidity(ctx, owner, DecreaseParams{
		PositionID: id, Amount: uint256.NewInt(1000),
		Amount0Min: new(uint256.Int), Amount1Min: new(uint256.Int),
		Deadline: futureDeadline(),
	})
	if err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if out0.Uint64() != 1000 || out1.Uint64() != 1000 {
		t.Fatalf("decrease returned (%s, %s)", out0.Dec(), out1.Dec())
	}

	pos, err := f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if !pos.Liquidity.IsZero() {
		t.Fatalf("liquidity = %s after full decrease", pos.Liquidity.Dec())
	}
	// 1000 principal + 1000 fees per asset.
	if pos.TokensOwed0.Uint64() != 2000 {
		t.Fatalf("owed0 = %s, want 2000", pos.TokensOwed0.Dec())
	}

	paid0, paid1, err := f.m.Collect(ctx, owner, CollectParams{
		PositionID: id, Recipient: owner,
		Amount0Max: huge(), Amount1Max: huge(),
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if paid0.Uint64() != 2000 || paid1.Uint64() != 2000 {
		t.Fatalf("collect paid (%s, %s), want (2000, 2000)", paid0.Dec(), paid1.Dec())
	}

	pos, err = f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if !pos.TokensOwed0.IsZero() || !pos.TokensOwed1.IsZero() {
		t.Fatalf("accrued not drained: (%s, %s)", pos.TokensOwed0.Dec(), pos.TokensOwed1.Dec())
	}

	if len(f.sim.Transfers) != 1 {
		t.Fatalf("expected one pool transfer, got %d", len(f.sim.Transfers))
	}
	if f.sim.Transfers[0].Recipient != owner {
		t.Fatalf("transfer recipient = %s", f.sim.Transfers[0].Recipient.Hex())
	}
}

func TestCollectZeroMaxLeavesAccrued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.mint(t, 1000)

	if err := f.sim.AdvanceFeeGrowth(f.poolAddr, growthX128(4), nil); err != nil {
		t.Fatalf("advance: %v", err)
	}

	paid0, _, err := f.m.Collect(ctx, owner, CollectParams{
		PositionID: id, Recipient: owner,
		Amount0Max: new(uint256.Int), Amount1Max: new(uint256.Int),
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !paid0.IsZero() {
		t.Fatalf("paid0 = %s, want 0", paid0.Dec())
	}

	pos, err := f.m.Positions(id)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if pos.TokensOwed0.Uint64() != 4000 {
		t.Fatalf("accrued0 = %s, want 4000 (settled, untouched by zero-max collect)", pos.TokensOwed0.Dec())
	}
}

func TestBurnLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.mint(t, 1000)

	if err := f.m.Burn(ctx, owner, id); !errors.Is(err, model.ErrPositionNotEmpty) {
		t.Fatalf("expected ErrPositionNotEmpty with liquidity, got %v", err)
	}

	if _, _, err := f.m.DecreaseLiquidity(ctx, owner, DecreaseParams{
		PositionID: id, Amount: uint256.NewInt(1000),
		Amount0Min: new(uint256.Int), Amount1Min: new(uint256.Int),
		Deadline: futureDeadline(),
	}); err != nil {
		t.Fatalf("decrease: %v", err)
	}

	if err := f.m.Burn(ctx, owner, id); !errors.Is(err, model.ErrPositionNotEmpty) {
		t.Fatalf("expected ErrPositionNotEmpty with accrued balance, got %v", err)
	}

	if _, _, err := f.m.Collect(ctx, owner, CollectParams{
		PositionID: id, Recipient: owner,
		Amount0Max: huge(), Amount1Max: huge(),
	}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	if err := f.m.Burn(ctx, owner, id); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if _, err := f.m.Positions(id); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("expected ErrInvalidTokenID after burn, got %v", err)
	}
	if _, err := f.life.OwnerOf(id); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("ownership binding survived burn: %v", err)
	}

	next := f.mint(t, 1)
	if next == id {
		t.Fatalf("identifier %d reused after burn", id)
	}
}
