package cli

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/exchange"
)

// NewBlockCommand creates the block command group.
//
// The exchange has no chain of its own; the host reports the chain height
// through these commands and every later command reads it back.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Show or move the persisted block height",
		Long: `Show or move the persisted block height. Heights only move forward.

Examples:
  pointex block show
  pointex block set 120
  pointex block advance 10`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the block height and current era",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlock(rootOpts, cmd, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set <height>",
		Short:         "Move the block height to an absolute value",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := parseUint("height", args[0])
			if err != nil {
				return err
			}
			return runBlock(rootOpts, cmd, func(c *exchange.ManualClock) error {
				if current := c.BlockHeight(); idx.Block(height) < current {
					return NewExitError(ExitCommandError, fmt.Sprintf("block height %d is below the current height %d", height, current))
				}
				c.Set(idx.Block(height))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "advance <blocks>",
		Short:         "Move the block height forward",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseUint("blocks", args[0])
			if err != nil {
				return err
			}
			return runBlock(rootOpts, cmd, func(c *exchange.ManualClock) error {
				c.Advance(n)
				return nil
			})
		},
	})

	return cmd
}

// BlockResult is the JSON payload of the block commands.
type BlockResult struct {
	BlockHeight idx.Block `json:"block_height"`
	CurrentEra  uint64    `json:"current_era"`
}

func runBlock(opts *RootOptions, cmd *cobra.Command, move func(*exchange.ManualClock) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if move != nil {
		if err := move(s.clock); err != nil {
			return err
		}
		if err := s.store.SetBlockHeight(s.ctx, s.clock.BlockHeight()); err != nil {
			return WrapExitError(ExitFailure, "failed to persist block height", err)
		}
	}

	clock := s.engine.Clock()
	result := BlockResult{BlockHeight: clock.BlockHeight(), CurrentEra: uint64(clock.CurrentEra())}
	return s.out.Result(result, "Block %d, era %d", uint64(result.BlockHeight), result.CurrentEra)
}
