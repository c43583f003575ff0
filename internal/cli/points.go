package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/model"
	"github.com/roach88/pointex/internal/store"
)

// NewPointsCommand creates the points command group.
func NewPointsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Manage the point ledger",
		Long: `Manage the point ledger the exchange reads balances from.

Examples:
  pointex points set 0x00000000000000000000000000000000000000a1 500
  pointex points add 0x00000000000000000000000000000000000000a1 25
  pointex points show`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "set <account> <points>",
		Short:         "Overwrite an account's point balance",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPointsWrite(rootOpts, args[0], args[1], false, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "add <account> <points>",
		Short:         "Credit points to an account",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPointsWrite(rootOpts, args[0], args[1], true, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show [account]",
		Short:         "Show point balances",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPointsShow(rootOpts, args, cmd)
		},
	})

	return cmd
}

func runPointsWrite(opts *RootOptions, rawAccount, rawPoints string, credit bool, cmd *cobra.Command) error {
	account, err := parseAccount(rawAccount)
	if err != nil {
		return err
	}
	points, err := parseUint("points", rawPoints)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if credit {
		err = s.store.CreditPoints(s.ctx, account, model.PointAmount(points))
	} else {
		err = s.store.SetPoints(s.ctx, account, model.PointAmount(points))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to update points", err)
	}

	total, err := s.store.TotalPoints(s.ctx, account)
	if err != nil {
		return err
	}
	return outputBalances(s, []store.PointBalance{{Account: account, Points: total}})
}

func runPointsShow(opts *RootOptions, args []string, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 1 {
		account, err := parseAccount(args[0])
		if err != nil {
			return err
		}
		total, err := s.store.TotalPoints(s.ctx, account)
		if err != nil {
			return err
		}
		return outputBalances(s, []store.PointBalance{{Account: account, Points: total}})
	}

	balances, err := s.store.Points(s.ctx)
	if err != nil {
		return err
	}
	return outputBalances(s, balances)
}

func outputBalances(s *session, balances []store.PointBalance) error {
	if s.out.Format == "json" {
		return s.out.Success(balances)
	}
	p := s.out.Printer()
	for _, b := range balances {
		p.Fprintf(s.out.Writer, "%s  %15d\n", b.Account.Hex(), uint64(b.Points))
	}
	return nil
}
