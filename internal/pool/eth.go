package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrReadOnlyBackend marks factory operations that would need to submit a
// transaction, which the eth_call-only chain backend cannot do.
var ErrReadOnlyBackend = errors.New("read-only chain backend")

// EthFactory adapts the RPC reader to the Factory contract for chain-backed
// wiring. Lookups and state checks hit the live factory and pool; creation
// and initialization are on-chain transactions and fail with
// ErrReadOnlyBackend.
type EthFactory struct {
	reader  *Reader
	factory common.Address
}

var _ Factory = (*EthFactory)(nil)

func NewEthFactory(reader *Reader, factory common.Address) *EthFactory {
	return &EthFactory{reader: reader, factory: factory}
}

func (f *EthFactory) CreatePool(_ context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	return common.Address{}, fmt.Errorf("create pool %s/%s fee %d: %w", tokenA.Hex(), tokenB.Hex(), fee, ErrReadOnlyBackend)
}

func (f *EthFactory) LookupPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error) {
	return f.reader.FactoryLookup(ctx, f.factory, tokenA, tokenB, fee)
}

func (f *EthFactory) InitializePool(_ context.Context, poolAddr common.Address, _ *uint256.Int) error {
	return fmt.Errorf("initialize pool %s: %w", poolAddr.Hex(), ErrReadOnlyBackend)
}

func (f *EthFactory) IsInitialized(ctx context.Context, poolAddr common.Address) (bool, error) {
	return f.reader.IsInitialized(ctx, poolAddr)
}
