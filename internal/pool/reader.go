package pool

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionLedger/internal/chain"
)

// Meta holds a live pool's immutable metadata.
type Meta struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
}

// Reader queries live pools and their factory over RPC. It is read-only:
// derived identities are checked against the chain, accumulators and pool
// state are fetched, but no transaction is ever submitted.
type Reader struct {
	chain      *chain.Client
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewReader(chainClient *chain.Client, maxRetries int, backoff time.Duration, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		chain:      chainClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// PoolMeta loads the pool's immutable metadata.
func (r *Reader) PoolMeta(ctx context.Context, poolAddr common.Address) (Meta, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return Meta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.call(ctx, poolAddr, poolABI, "token0")
	if err != nil {
		return Meta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return Meta{}, fmt.Errorf("token0: %w", err)
	}

	values, err = r.call(ctx, poolAddr, poolABI, "token1")
	if err != nil {
		return Meta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return Meta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = r.call(ctx, poolAddr, poolABI, "fee")
	if err != nil {
		return Meta{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return Meta{}, fmt.Errorf("fee: %w", err)
	}

	values, err = r.call(ctx, poolAddr, poolABI, "tickSpacing")
	if err != nil {
		return Meta{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return Meta{}, fmt.Errorf("tick spacing: %w", err)
	}

	return Meta{
		Token0:      token0,
		Token1:      token1,
		Fee:         uint32(feeInt.Uint64()),
		TickSpacing: int32(spacingInt.Int64()),
	}, nil
}

// FeeGrowthGlobal returns the pool's global fee-growth accumulators.
func (r *Reader) FeeGrowthGlobal(ctx context.Context, poolAddr common.Address) (*uint256.Int, *uint256.Int, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.call(ctx, poolAddr, poolABI, "feeGrowthGlobal0X128")
	if err != nil {
		return nil, nil, err
	}
	growth0, err := asUint256(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("feeGrowthGlobal0X128: %w", err)
	}

	values, err = r.call(ctx, poolAddr, poolABI, "feeGrowthGlobal1X128")
	if err != nil {
		return nil, nil, err
	}
	growth1, err := asUint256(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("feeGrowthGlobal1X128: %w", err)
	}

	return growth0, growth1, nil
}

// IsInitialized reports whether the pool has a price set.
func (r *Reader) IsInitialized(ctx context.Context, poolAddr common.Address) (bool, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return false, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.call(ctx, poolAddr, poolABI, "slot0")
	if err != nil {
		return false, err
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return false, fmt.Errorf("slot0: %w", err)
	}
	return sqrtPrice.Sign() != 0, nil
}

// FactoryLookup asks the live factory for the pool address of the pair.
// A zero address means the pool does not exist.
func (r *Reader) FactoryLookup(ctx context.Context, factory, tokenA, tokenB common.Address, fee uint32) (common.Address, bool, error) {
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("parse factory abi: %w", err)
	}

	data, err := factoryABI.Pack("getPool", tokenA, tokenB, big.NewInt(int64(fee)))
	if err != nil {
		return common.Address{}, false, fmt.Errorf("pack getPool: %w", err)
	}

	var resp []byte
	err = chain.WithRetry(ctx, r.maxRetries, r.backoff, func(ctx context.Context) error {
		var err error
		resp, err = r.chain.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
		if err != nil {
			r.logger.Warn("getPool call failed", zap.String("factory", factory.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return common.Address{}, false, fmt.Errorf("call getPool: %w", err)
	}

	values, err := factoryABI.Unpack("getPool", resp)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("unpack getPool: %w", err)
	}
	addr, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, false, err
	}
	return addr, addr != (common.Address{}), nil
}

func (r *Reader) call(ctx context.Context, target common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	err = chain.WithRetry(ctx, r.maxRetries, r.backoff, func(ctx context.Context) error {
		var err error
		resp, err = r.chain.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
		if err != nil {
			r.logger.Warn("contract call failed", zap.String("method", method), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint256(value interface{}) (*uint256.Int, error) {
	parsed, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("value overflows uint256: %s", parsed.String())
	}
	return out, nil
}
