package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"l2rollup/core"
	"l2rollup/pkg/utils"
)

// prover is the standalone zkVM guest runner: given a committed batch, it
// re-executes its blocks and prints the resulting public output (including
// pi_hash) without submitting anything to settlement. settlementsim's own
// "prove" subcommand folds this same guest logic into an end-to-end
// prove-and-finalize flow; this binary exists for a party that only wants
// the proof's public output, e.g. to submit to a separate verifier.
func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}
	rootCmd := &cobra.Command{Use: "prover"}
	rootCmd.AddCommand(proveCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func proveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prove [batch_index]",
		Short: "re-execute a committed batch and print its public output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchIndex, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch index: %w", err)
			}

			sequencerStore, err := core.OpenStore(utils.EnvOrDefault("SEQUENCER_STORE_PATH", "sequencer.wal"))
			if err != nil {
				return fmt.Errorf("open sequencer store: %w", err)
			}
			defer sequencerStore.Close()
			settlementStore, err := core.OpenStore(utils.EnvOrDefault("SETTLEMENT_STORE_PATH", "settlement.wal"))
			if err != nil {
				return fmt.Errorf("open settlement store: %w", err)
			}
			defer settlementStore.Close()

			settlement := core.NewSettlement(settlementStore)
			batch, ok := settlement.GetCommittedBatch(batchIndex)
			if !ok {
				return fmt.Errorf("batch %d not committed", batchIndex)
			}

			state := core.NewState()
			if batch.StartBlockNum > 1 {
				priorBlocks, err := core.LoadBlockRange(sequencerStore, 1, batch.StartBlockNum-1)
				if err != nil {
					return fmt.Errorf("replay prior blocks: %w", err)
				}
				for _, blk := range priorBlocks {
					ops := make([]core.TransferOp, 0, len(blk.Txns))
					for i := range blk.Txns {
						op, err := core.ParseTransferOp(&blk.Txns[i])
						if err != nil {
							return err
						}
						if op != nil {
							ops = append(ops, *op)
						}
					}
					if err := core.ApplyTransfers(core.Strict, state, ops); err != nil {
						return err
					}
				}
			}

			blocks, err := core.LoadBlockRange(sequencerStore, batch.StartBlockNum, batch.EndBlockNum-batch.StartBlockNum+1)
			if err != nil {
				return fmt.Errorf("load batch blocks: %w", err)
			}

			output, err := core.RunGuest(state, blocks)
			if err != nil {
				return fmt.Errorf("guest execution failed: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(output)
		},
	}
}
