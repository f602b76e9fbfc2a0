package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"l2rollup/core"
	"l2rollup/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}
	rootCmd := &cobra.Command{Use: "settlementsim"}
	rootCmd.AddCommand(runCmd(), proveCmd(), statusCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStores() (sequencerStore, settlementStore *core.Store, err error) {
	sequencerStore, err = core.OpenStore(utils.EnvOrDefault("SEQUENCER_STORE_PATH", "sequencer.wal"))
	if err != nil {
		return nil, nil, fmt.Errorf("open sequencer store: %w", err)
	}
	settlementStore, err = core.OpenStore(utils.EnvOrDefault("SETTLEMENT_STORE_PATH", "settlement.wal"))
	if err != nil {
		sequencerStore.Close()
		return nil, nil, fmt.Errorf("open settlement store: %w", err)
	}
	return sequencerStore, settlementStore, nil
}

// runCmd runs the batcher loop: periodically assembling unbatched blocks
// from the sequencer's store and committing them to the settlement store.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the batch assembly loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			sequencerStore, settlementStore, err := openStores()
			if err != nil {
				return err
			}
			defer sequencerStore.Close()
			defer settlementStore.Close()

			settlement := core.NewSettlement(settlementStore)
			batcher := core.NewBatcher(sequencerStore, settlement)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logrus.Info("batcher started")
			err = batcher.Run(ctx, core.DefaultBatchInterval)
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}

// proveCmd re-executes a committed batch's blocks (the zkVM guest's logic,
// run natively rather than inside a real proving system) and submits the
// resulting proof to the verifier, finalizing the batch on success.
func proveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prove [batch_index]",
		Short: "prove and finalize a committed batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchIndex, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch index: %w", err)
			}

			sequencerStore, settlementStore, err := openStores()
			if err != nil {
				return err
			}
			defer sequencerStore.Close()
			defer settlementStore.Close()

			settlement := core.NewSettlement(settlementStore)
			batch, ok := settlement.GetCommittedBatch(batchIndex)
			if !ok {
				return fmt.Errorf("batch %d not committed", batchIndex)
			}

			state, err := replayUpTo(sequencerStore, batch.StartBlockNum)
			if err != nil {
				return fmt.Errorf("replay prior state: %w", err)
			}
			blocks, err := core.LoadBlockRange(sequencerStore, batch.StartBlockNum, batch.EndBlockNum-batch.StartBlockNum+1)
			if err != nil {
				return fmt.Errorf("load batch blocks: %w", err)
			}

			output, err := core.RunGuest(state, blocks)
			if err != nil {
				return fmt.Errorf("guest execution failed: %w", err)
			}

			proof := core.Proof{VKeyHash: core.Layer2VKeyHash, PublicValues: output.PIHash[:]}
			bridge := core.NewBridge()
			verifier := core.NewVerifier(settlement, bridge)
			if err := verifier.ProveBatch(batchIndex, proof); err != nil {
				return fmt.Errorf("proof rejected: %w", err)
			}

			logrus.WithField("batch_index", batchIndex).Info("batch proved and finalized")
			return nil
		},
	}
}

// replayUpTo reconstructs the state immediately preceding startBlockNum by
// re-executing every earlier block in Strict mode from genesis.
func replayUpTo(store *core.Store, startBlockNum uint64) (*core.State, error) {
	state := core.NewState()
	if startBlockNum <= 1 {
		return state, nil
	}
	priorBlocks, err := core.LoadBlockRange(store, 1, startBlockNum-1)
	if err != nil {
		return nil, err
	}
	for _, blk := range priorBlocks {
		ops := make([]core.TransferOp, 0, len(blk.Txns))
		for i := range blk.Txns {
			op, err := core.ParseTransferOp(&blk.Txns[i])
			if err != nil {
				return nil, err
			}
			if op != nil {
				ops = append(ops, *op)
			}
		}
		if err := core.ApplyTransfers(core.Strict, state, ops); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the latest committed and finalized batch indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settlementStore, err := openStores()
			if err != nil {
				return err
			}
			defer settlementStore.Close()

			settlement := core.NewSettlement(settlementStore)
			latest := settlement.GetLatestBatch()
			if latest == nil {
				fmt.Println("no batches committed")
			} else {
				fmt.Printf("latest committed batch: %d (blocks %d-%d)\n", latest.BatchIndex, latest.StartBlockNum, latest.EndBlockNum)
			}
			fmt.Printf("last finalized batch index: %d\n", settlement.LastFinalizedBatchIndex())
			return nil
		},
	}
}
