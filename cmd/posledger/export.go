package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionLedger/internal/config"
	"positionLedger/internal/model"
	"positionLedger/internal/storage/postgres"
)

// runExport replays the local operation journal into Postgres in batches.
func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize <= 0 {
		batchSize = 500
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	file, err := os.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var (
		batch   []model.OperationRecord
		total   int
		lineNo  int
		skipped int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.Append(ctx, batch); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec model.OperationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping malformed journal line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			skipped++
			continue
		}
		batch = append(batch, rec)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	logger.Info("journal exported",
		zap.String("journal", cfg.JournalPath),
		zap.Int("records", total),
		zap.Int("skipped", skipped),
	)
	return nil
}
