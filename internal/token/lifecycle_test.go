package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"positionLedger/internal/model"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestBindAndOwnerOf(t *testing.T) {
	life := NewLifecycle(nil)

	if err := life.Bind(1, alice); err != nil {
		t.Fatalf("bind: %v", err)
	}
	owner, err := life.OwnerOf(1)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != alice {
		t.Fatalf("owner = %s, want %s", owner.Hex(), alice.Hex())
	}

	if err := life.Bind(1, bob); err == nil {
		t.Fatal("expected rebind to fail")
	}
	if err := life.Bind(2, common.Address{}); err == nil {
		t.Fatal("expected zero owner to be rejected")
	}
}

func TestOwnerOfUnknown(t *testing.T) {
	life := NewLifecycle(nil)
	if _, err := life.OwnerOf(42); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("err = %v, want ErrInvalidTokenID", err)
	}
}

func TestTransferRunsHooksFirst(t *testing.T) {
	life := NewLifecycle(nil)
	if err := life.Bind(1, alice); err != nil {
		t.Fatalf("bind: %v", err)
	}

	var hooked []uint64
	life.OnTransfer(func(id uint64) error {
		hooked = append(hooked, id)
		return nil
	})

	if err := life.Transfer(1, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(hooked) != 1 || hooked[0] != 1 {
		t.Fatalf("hooked = %v, want [1]", hooked)
	}
	owner, _ := life.OwnerOf(1)
	if owner != bob {
		t.Fatalf("owner = %s, want %s", owner.Hex(), bob.Hex())
	}
}

func TestTransferAbortsOnHookFailure(t *testing.T) {
	life := NewLifecycle(nil)
	if err := life.Bind(1, alice); err != nil {
		t.Fatalf("bind: %v", err)
	}
	life.OnTransfer(func(uint64) error {
		return errors.New("permit invalidation failed")
	})

	if err := life.Transfer(1, bob); err == nil {
		t.Fatal("expected transfer to fail")
	}
	owner, _ := life.OwnerOf(1)
	if owner != alice {
		t.Fatalf("owner changed despite failed hook: %s", owner.Hex())
	}
}

func TestUnbindRetiresBinding(t *testing.T) {
	life := NewLifecycle(nil)
	if err := life.Bind(1, alice); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := life.Unbind(1); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if _, err := life.OwnerOf(1); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("err = %v, want ErrInvalidTokenID", err)
	}
	if err := life.Unbind(1); !errors.Is(err, model.ErrInvalidTokenID) {
		t.Fatalf("second unbind err = %v, want ErrInvalidTokenID", err)
	}
}
