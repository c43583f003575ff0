package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

// NewPayoutsCommand creates the payouts command group.
func NewPayoutsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Inspect and redeliver settlement payouts",
		Long: `Every settlement journals one payout per ranked entry before handing
it to the reward sink. Payouts the sink rejected stay pending until
"pointex payouts retry" delivers them.

Examples:
  pointex payouts show 5
  pointex payouts retry`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show <era>",
		Short:         "Show an era's payout journal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayoutsShow(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "retry",
		Short:         "Redeliver every pending payout",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayoutsRetry(rootOpts, cmd)
		},
	})

	return cmd
}

func runPayoutsShow(opts *RootOptions, rawEra string, cmd *cobra.Command) error {
	era, err := eraArg(rawEra)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	payouts, err := s.engine.Payouts(s.ctx, era)
	if err != nil {
		return err
	}
	if s.out.Format == "json" {
		return s.out.Success(payouts)
	}
	renderPayouts(s.out, era, payouts)
	return nil
}

func renderPayouts(out *OutputFormatter, era model.Era, payouts []model.Payout) {
	w := out.Writer
	if len(payouts) == 0 {
		fmt.Fprintf(w, "No payouts for era %d\n", era)
		return
	}
	for _, p := range payouts {
		state := "pending"
		if p.Delivered {
			state = "delivered"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n", p.Batch, p.Account.Hex(), p.Amount, state)
	}
}

// RetryResult is the JSON payload of payouts retry.
type RetryResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

func runPayoutsRetry(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	delivered, err := s.engine.DeliverPending(s.ctx)
	var de *exchange.DeliveryError
	if err != nil && !errors.As(err, &de) {
		return err
	}

	result := RetryResult{Delivered: delivered}
	if de != nil {
		result.Failed = len(de.Failed)
	}

	if err := s.out.Result(result, "Delivered %d payout(s), %d still pending", result.Delivered, result.Failed); err != nil {
		return err
	}

	if de != nil {
		return WrapExitError(ExitFailure, "some payouts were not delivered", de)
	}
	return nil
}
