package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"l2rollup/core"
	"l2rollup/internal/rpcserver"
	"l2rollup/pkg/utils"
)

func main() {
	rootCmd := &cobra.Command{Use: "sequencer"}
	rootCmd.AddCommand(startCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "run the block-producer loop and JSON HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				logrus.WithError(err).Debug("no .env file loaded")
			}

			storePath := utils.EnvOrDefault("SEQUENCER_STORE_PATH", "sequencer.wal")
			store, err := core.OpenStore(storePath)
			if err != nil {
				return fmt.Errorf("open sequencer store: %w", err)
			}
			defer store.Close()

			sequencer, err := core.NewSequencer(store)
			if err != nil {
				return fmt.Errorf("init sequencer: %w", err)
			}

			if devAccountStr := utils.EnvOrDefault("DEV_ACCOUNT", ""); devAccountStr != "" {
				addr, err := core.ParseAddress(devAccountStr)
				if err != nil {
					return fmt.Errorf("parse DEV_ACCOUNT: %w", err)
				}
				sequencer.SeedDevAccount(addr)
			}

			settlementStorePath := utils.EnvOrDefault("SETTLEMENT_STORE_PATH", "settlement.wal")
			settlementStore, err := core.OpenStore(settlementStorePath)
			if err != nil {
				return fmt.Errorf("open settlement store: %w", err)
			}
			defer settlementStore.Close()
			settlement := core.NewSettlement(settlementStore)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 3)
			go func() { errCh <- sequencer.Run(ctx) }()

			if l1WS := utils.EnvOrDefault("L1_WS", ""); l1WS != "" {
				oracle := core.NewOracle(l1WS, sequencer)
				go func() {
					logrus.WithField("l1_ws", l1WS).Info("L1 deposit oracle listening")
					errCh <- oracle.Run(ctx)
				}()
			} else {
				logrus.Warn("L1_WS not set; deposit oracle disabled")
			}

			addr := utils.EnvOrDefault("SEQUENCER_ADDR", "0.0.0.0:8898")
			go func() {
				logrus.WithField("addr", addr).Info("sequencer JSON HTTP server listening")
				errCh <- rpcserver.ListenAndServe(addr, sequencer, settlement)
			}()

			select {
			case <-ctx.Done():
				logrus.Info("shutting down sequencer")
				return nil
			case err := <-errCh:
				if err != nil && err != context.Canceled {
					return err
				}
				return nil
			}
		},
	}
}
