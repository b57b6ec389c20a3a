package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionLedger/internal/chain"
	"positionLedger/internal/config"
	"positionLedger/internal/pool"
	"positionLedger/internal/resolver"
)

// runInspect reads a live pool over RPC and checks that the deterministic
// identity derivation agrees with the factory's registered address.
func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	token0Str, _ := cmd.Flags().GetString("token0")
	token1Str, _ := cmd.Flags().GetString("token1")
	fee, _ := cmd.Flags().GetUint32("fee")

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.FactoryAddress == "" || cfg.InitCodeHash == "" {
		return fmt.Errorf("factory and init-code-hash are required")
	}
	if token0Str == "" || token1Str == "" {
		return fmt.Errorf("token0 and token1 are required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	factoryAddr := common.HexToAddress(cfg.FactoryAddress)
	codeHash := common.HexToHash(cfg.InitCodeHash)
	token0 := common.HexToAddress(token0Str)
	token1 := common.HexToAddress(token1Str)

	reader := pool.NewReader(client, cfg.MaxRetries, cfg.RetryBackoff, logger)
	factory := pool.NewEthFactory(reader, factoryAddr)
	res := resolver.New(factoryAddr, codeHash, factory, logger)

	derived := res.DeriveIdentity(token0, token1, fee)
	registered, exists, err := factory.LookupPool(ctx, token0, token1, fee)
	if err != nil {
		return fmt.Errorf("factory lookup: %w", err)
	}
	if !exists {
		logger.Warn("factory has no pool for pair",
			zap.String("derived", derived.Hex()),
			zap.Uint32("fee", fee),
		)
		return nil
	}

	logger.Info("pool identity",
		zap.String("chain_id", chainID.String()),
		zap.String("derived", derived.Hex()),
		zap.String("registered", registered.Hex()),
		zap.Bool("match", derived == registered),
	)

	meta, err := reader.PoolMeta(ctx, registered)
	if err != nil {
		return fmt.Errorf("pool metadata: %w", err)
	}
	initialized, err := factory.IsInitialized(ctx, registered)
	if err != nil {
		return fmt.Errorf("pool state: %w", err)
	}
	if initialized {
		if _, err := res.RequireInitialized(ctx, token0, token1, fee); err != nil {
			return fmt.Errorf("resolve pool: %w", err)
		}
	}
	growth0, growth1, err := reader.FeeGrowthGlobal(ctx, registered)
	if err != nil {
		return fmt.Errorf("fee growth: %w", err)
	}

	logger.Info("pool state",
		zap.String("token0", meta.Token0.Hex()),
		zap.String("token1", meta.Token1.Hex()),
		zap.Uint32("fee", meta.Fee),
		zap.Int32("tick_spacing", meta.TickSpacing),
		zap.Bool("initialized", initialized),
		zap.String("fee_growth_global0_x128", growth0.Dec()),
		zap.String("fee_growth_global1_x128", growth1.Dec()),
	)
	return nil
}
