package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

// SettleResult is the JSON payload of a settle call.
type SettleResult struct {
	Batch string `json:"batch"`
	model.RoundView

	// Undelivered counts payouts the reward sink did not accept.
	Undelivered int `json:"undelivered,omitempty"`
}

// NewSettleCommand creates the settle command.
func NewSettleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <era> <mint>",
		Short: "Settle an ended era and pay out its mint",
		Long: `Settle an ended era: refresh its applicants' points, split the mint in
proportion to them and pay every applicant. The last ranked entry absorbs
rounding so the takes sum to the mint exactly.

Payouts the reward sink rejects stay pending; deliver them later with
"pointex payouts retry".

Example:
  pointex settle 5 1000000000000000000 --db ./pointex.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettle(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runSettle(opts *RootOptions, rawEra, rawMint string, cmd *cobra.Command) error {
	era, err := eraArg(rawEra)
	if err != nil {
		return err
	}
	mint, err := mintArg(rawMint)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	settlement, err := s.engine.Settle(s.ctx, era, mint)
	var de *exchange.DeliveryError
	if err != nil && !errors.As(err, &de) {
		return s.reject(err)
	}

	result := SettleResult{
		Batch:     settlement.Batch,
		RoundView: model.NewRoundView(era, settlement.Round),
	}
	if de != nil {
		result.Undelivered = len(de.Failed)
	}

	if s.out.Format == "json" {
		if err := s.out.Success(result); err != nil {
			return err
		}
	} else {
		w := s.out.Writer
		fmt.Fprintf(w, "Settled era %d in batch %s\n", uint64(era), result.Batch)
		renderRound(s.out, result.RoundView)
	}

	if de != nil {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("era %d settled but %d payout(s) not delivered; run \"pointex payouts retry\"", era, len(de.Failed)), de)
	}
	return nil
}
