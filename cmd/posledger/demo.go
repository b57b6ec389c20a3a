package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionLedger/internal/config"
	"positionLedger/internal/manager"
	"positionLedger/internal/permit"
	"positionLedger/internal/pool"
	"positionLedger/internal/registry"
	"positionLedger/internal/resolver"
	"positionLedger/internal/storage"
	"positionLedger/internal/storage/postgres"
	"positionLedger/internal/token"
)

const (
	defaultFactory      = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	defaultInitCodeHash = "0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"
)

var demoAssets = struct {
	A common.Address
	B common.Address
}{
	A: common.HexToAddress("0x2170Ed0880ac9A755fd29B2688956BD959F933F8"),
	B: common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"),
}

// runDemo walks one position through its full lifecycle against the
// simulated pool: mint, fee accrual, increase, decrease, an operator permit,
// collect, and burn. Every step lands in the operation journal.
func runDemo(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.FactoryAddress == "" {
		cfg.FactoryAddress = defaultFactory
	}
	if cfg.InitCodeHash == "" {
		cfg.InitCodeHash = defaultInitCodeHash
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	ownerKey, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate owner key: %w", err)
	}
	ownerAddr := crypto.PubkeyToAddress(ownerKey.PublicKey)
	operatorAddr := common.HexToAddress("0x00000000000000000000000000000000000ff1ce")

	factoryAddr := common.HexToAddress(cfg.FactoryAddress)
	codeHash := common.HexToHash(cfg.InitCodeHash)

	reg := registry.New()
	life := token.NewLifecycle(logger)
	permits := permit.NewLedger(cfg.ChainID, factoryAddr, reg, life, permit.EthRecoverer{}, logger)
	life.OnTransfer(permits.NoteTransfer)

	res := resolver.New(factoryAddr, codeHash, nil, logger)
	sim := pool.NewSim(func(a, b common.Address, fee uint32) common.Address {
		return res.DeriveIdentity(a, b, fee)
	})
	res = resolver.New(factoryAddr, codeHash, sim, logger)

	mgr := manager.New(manager.Deps{
		Registry:  reg,
		Lifecycle: life,
		Permits:   permits,
		Resolver:  res,
		Pool:      sim,
		Journal:   storage.NewJsonlJournal(cfg.JournalPath),
		Logger:    logger,
	})

	price := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	poolAddr, err := res.EnsurePool(ctx, demoAssets.A, demoAssets.B, 3000, price)
	if err != nil {
		return fmt.Errorf("ensure pool: %w", err)
	}

	deadline := uint64(time.Now().Add(time.Hour).Unix())
	nocap := new(uint256.Int).Lsh(uint256.NewInt(1), 200)

	minted, err := mgr.Mint(ctx, manager.MintParams{
		AssetX:     demoAssets.A,
		AssetY:     demoAssets.B,
		Fee:        3000,
		TickLower:  -6000,
		TickUpper:  6000,
		Amount:     uint256.NewInt(1_000),
		Amount0Max: nocap,
		Amount1Max: nocap,
		Recipient:  ownerAddr,
		Deadline:   deadline,
	})
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	id := minted.PositionID

	// Swap activity stand-in: three accrued fee units per liquidity unit.
	growth := new(uint256.Int).Lsh(uint256.NewInt(3), 128)
	if err := sim.AdvanceFeeGrowth(poolAddr, growth, growth); err != nil {
		return fmt.Errorf("advance fee growth: %w", err)
	}

	if _, _, err := mgr.IncreaseLiquidity(ctx, ownerAddr, manager.IncreaseParams{
		PositionID: id,
		Amount:     uint256.NewInt(500),
		Amount0Max: nocap,
		Amount1Max: nocap,
		Deadline:   deadline,
	}); err != nil {
		return fmt.Errorf("increase: %w", err)
	}

	if err := delegateOperator(permits, reg, ownerKey, id, operatorAddr, deadline); err != nil {
		return fmt.Errorf("permit: %w", err)
	}
	logger.Info("operator delegated",
		zap.Uint64("position_id", id),
		zap.String("operator", operatorAddr.Hex()),
	)

	pos, err := mgr.Positions(id)
	if err != nil {
		return err
	}
	if _, _, err := mgr.DecreaseLiquidity(ctx, operatorAddr, manager.DecreaseParams{
		PositionID: id,
		Amount:     new(uint256.Int).Set(&pos.Liquidity),
		Deadline:   deadline,
	}); err != nil {
		return fmt.Errorf("decrease: %w", err)
	}

	if cfg.PGDSN != "" {
		if err := snapshotToPostgres(ctx, cfg.PGDSN, reg); err != nil {
			return err
		}
		logger.Info("position snapshot exported")
	}

	paid0, paid1, err := mgr.Collect(ctx, ownerAddr, manager.CollectParams{
		PositionID: id,
		Recipient:  ownerAddr,
		Amount0Max: nocap,
		Amount1Max: nocap,
	})
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	logger.Info("balances drained",
		zap.String("amount0", paid0.Dec()),
		zap.String("amount1", paid1.Dec()),
	)

	if err := mgr.Burn(ctx, ownerAddr, id); err != nil {
		return fmt.Errorf("burn: %w", err)
	}

	logger.Info("demo finished", zap.String("journal", cfg.JournalPath))
	return nil
}

func delegateOperator(permits *permit.Ledger, reg *registry.Registry, ownerKey *ecdsa.PrivateKey, positionID uint64, operator common.Address, expiry uint64) error {
	pos, err := reg.Get(positionID)
	if err != nil {
		return err
	}

	digest := permits.Digest(positionID, operator, pos.Nonce, expiry)
	sig, err := crypto.Sign(digest.Bytes(), ownerKey)
	if err != nil {
		return fmt.Errorf("sign digest: %w", err)
	}
	return permits.Authorize(positionID, operator, pos.Nonce, expiry, sig)
}

func snapshotToPostgres(ctx context.Context, dsn string, reg *registry.Registry) error {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.UpsertPositions(ctx, reg.Snapshot()); err != nil {
		return fmt.Errorf("upsert positions: %w", err)
	}
	return nil
}
