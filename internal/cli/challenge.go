package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/model"
)

// NewChallengeCommand creates the challenge command group.
func NewChallengeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Flag eras as disputed",
		Long: `A challenged era cannot be settled until the challenge is cleared.

Examples:
  pointex challenge mark 5
  pointex challenge clear 5
  pointex challenge list`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "mark <era>",
		Short:         "Block settlement of an era",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChallenge(rootOpts, args[0], true, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear <era>",
		Short:         "Lift a challenge",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChallenge(rootOpts, args[0], false, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List challenged eras",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChallengeList(rootOpts, cmd)
		},
	})

	return cmd
}

// ChallengeResult is the JSON payload of challenge mark and clear.
type ChallengeResult struct {
	Era        model.Era `json:"era"`
	Challenged bool      `json:"challenged"`
}

func runChallenge(opts *RootOptions, rawEra string, challenged bool, cmd *cobra.Command) error {
	era, err := eraArg(rawEra)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.SetChallenged(s.ctx, era, challenged); err != nil {
		return err
	}

	verb := "cleared"
	if challenged {
		verb = "challenged"
	}
	return s.out.Result(ChallengeResult{Era: era, Challenged: challenged}, "Era %d %s", uint64(era), verb)
}

func runChallengeList(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	eras, err := s.store.ChallengedEras(s.ctx)
	if err != nil {
		return err
	}
	if s.out.Format == "json" {
		return s.out.Success(eras)
	}
	if len(eras) == 0 {
		return s.out.Success("No challenged eras")
	}
	for _, era := range eras {
		fmt.Fprintln(s.out.Writer, era)
	}
	return nil
}
