package cli

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/exchange"
	"github.com/roach88/pointex/internal/model"
)

// RoundOptions holds flags for the round command.
type RoundOptions struct {
	*RootOptions
	RewardList bool
}

// NewRoundCommand creates the round command.
func NewRoundCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RoundOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "round <era>",
		Short: "Show an era's ranked round",
		Long: `Show the ranked applications of an era. Settled rounds include each
entry's proportion and take, the minted total and the settlement digest.

Examples:
  pointex round 5
  pointex round 5 --reward-list --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRound(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.RewardList, "reward-list", false, "truncate to the configured max reward count")

	return cmd
}

// RoundResult is the JSON payload of the round command.
type RoundResult struct {
	model.RoundView
	LastRefresh *idx.Block `json:"last_refresh,omitempty"`
}

func runRound(opts *RoundOptions, rawEra string, cmd *cobra.Command) error {
	era, err := eraArg(rawEra)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	var round model.Round
	if opts.RewardList {
		round, err = s.engine.RewardList(s.ctx, era)
	} else {
		round, _, err = s.engine.Round(s.ctx, era)
	}
	if err != nil {
		return err
	}

	result := RoundResult{RoundView: model.NewRoundView(era, round)}
	marker, ok, err := s.store.RefreshMarker(s.ctx, era)
	if err != nil {
		return err
	}
	if ok {
		result.LastRefresh = &marker
	}

	if s.out.Format == "json" {
		return s.out.Success(result)
	}
	renderRound(s.out, result.RoundView)
	if ok {
		s.out.Printer().Fprintf(s.out.Writer, "  refreshed at block %d\n", uint64(marker))
	}
	return nil
}

// renderRound prints view as a table.
func renderRound(out *OutputFormatter, view model.RoundView) {
	p := out.Printer()
	w := out.Writer

	status := "open"
	if view.Settled {
		status = "settled, mint " + view.Mint
	}
	p.Fprintf(w, "Era %d (%s)\n", uint64(view.Era), status)
	if len(view.Entries) == 0 {
		fmt.Fprintln(w, "  no applications")
		return
	}

	for _, e := range view.Entries {
		line := p.Sprintf("  %2d  %s  %15d", e.Rank, e.Account, e.Points)
		if e.Proportion != "" {
			line += fmt.Sprintf("  %s  %s", e.Proportion, e.TakeToken)
		}
		fmt.Fprintln(w, line)
	}
	if view.Digest != "" {
		fmt.Fprintf(w, "  digest %s\n", view.Digest)
	}
}

// StateResult is the JSON payload of the state command.
type StateResult struct {
	exchange.State
	TokenSupply    model.TokenAmount `json:"token_supply"`
	ChallengedEras []model.Era       `json:"challenged_eras"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "state",
		Short:         "Show block height, current era and last settled era",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(rootOpts, cmd)
		},
	}
}

func runState(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.engine.State(s.ctx)
	if err != nil {
		return err
	}
	supply, err := s.store.TokenSupply(s.ctx)
	if err != nil {
		return err
	}
	challenged, err := s.store.ChallengedEras(s.ctx)
	if err != nil {
		return err
	}
	result := StateResult{State: state, TokenSupply: supply, ChallengedEras: challenged}

	if s.out.Format == "json" {
		return s.out.Success(result)
	}

	p := s.out.Printer()
	w := s.out.Writer
	p.Fprintf(w, "Block height:     %d\n", uint64(state.BlockHeight))
	p.Fprintf(w, "Current era:      %d\n", uint64(state.CurrentEra))
	if state.LastSettledEra != nil {
		p.Fprintf(w, "Last settled era: %d\n", uint64(*state.LastSettledEra))
	} else {
		fmt.Fprintln(w, "Last settled era: none")
	}
	fmt.Fprintf(w, "Token supply:     %s\n", supply)
	if len(challenged) > 0 {
		fmt.Fprintf(w, "Challenged eras:  %v\n", challenged)
	}
	return nil
}
