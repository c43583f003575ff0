package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/model"
)

// ApplyResult is the JSON payload of a successful apply.
type ApplyResult struct {
	Era     model.Era       `json:"era"`
	Account model.AccountID `json:"account"`
	Rank    int             `json:"rank"`
	Points  uint64          `json:"points"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <account>",
		Short: "Apply for the current era's reward round",
		Long: `Apply an account to the current era's round with its current points.

While the round has room, any account holding points is ranked in. A full
round only admits an account that strictly outranks its lowest entry,
which is then evicted.

Example:
  pointex apply 0x00000000000000000000000000000000000000a1 --db ./pointex.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], cmd)
		},
	}
}

func runApply(opts *RootOptions, rawAccount string, cmd *cobra.Command) error {
	account, err := parseAccount(rawAccount)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	era, err := s.engine.Apply(s.ctx, account)
	if err != nil {
		return s.reject(err)
	}

	round, _, err := s.engine.Round(s.ctx, era)
	if err != nil {
		return err
	}
	result := ApplyResult{Era: era, Account: account}
	for i, app := range round {
		if app.Account == account {
			result.Rank = i + 1
			result.Points = uint64(app.Points)
		}
	}

	return s.out.Result(result, "Applied %s to era %d at rank %d with %d points",
		account.Hex(), uint64(era), result.Rank, result.Points)
}

// eraArg parses a positional era argument.
func eraArg(raw string) (model.Era, error) {
	v, err := parseUint("era", raw)
	if err != nil {
		return 0, err
	}
	return model.Era(v), nil
}

func mintArg(raw string) (model.TokenAmount, error) {
	mint, err := model.ParseTokenAmount(raw)
	if err != nil {
		return model.TokenAmount{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid mint: %v", err))
	}
	return mint, nil
}
