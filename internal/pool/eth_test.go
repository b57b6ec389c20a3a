package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestEthFactoryRejectsMutations(t *testing.T) {
	factory := NewEthFactory(
		NewReader(nil, 0, 0, nil),
		common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
	)
	ctx := context.Background()

	tokenA := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if _, err := factory.CreatePool(ctx, tokenA, tokenB, 3000); !errors.Is(err, ErrReadOnlyBackend) {
		t.Fatalf("expected ErrReadOnlyBackend from CreatePool, got %v", err)
	}

	poolAddr := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	price := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	if err := factory.InitializePool(ctx, poolAddr, price); !errors.Is(err, ErrReadOnlyBackend) {
		t.Fatalf("expected ErrReadOnlyBackend from InitializePool, got %v", err)
	}
}
