package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pointex/internal/exchange"
)

// AuditResult is the JSON payload of the audit command.
type AuditResult struct {
	Eras     int                `json:"eras"`
	Findings []exchange.Finding `json:"findings"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Re-check the invariants of every stored round",
		Long: `Re-check every stored round: capacity, unique accounts, ranking, and
for settled rounds that proportions sum to one and every take matches its
proportion of the mint.

Exit codes:
  0 - No findings
  1 - One or more rounds violate an invariant
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, cmd)
		},
	}
}

func runAudit(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	eras, err := s.store.Eras(s.ctx)
	if err != nil {
		return err
	}

	result := AuditResult{Eras: len(eras), Findings: []exchange.Finding{}}
	for _, era := range eras {
		round, _, err := s.store.Round(s.ctx, era)
		if err != nil {
			return err
		}
		result.Findings = append(result.Findings, exchange.Audit(era, round, opts.Config.MaxRewardCount)...)
	}

	if len(result.Findings) > 0 {
		msg := fmt.Sprintf("audit found %d problem(s)", len(result.Findings))
		if err := s.out.Error("E_AUDIT", msg, result); err != nil {
			return err
		}
		if s.out.Format != "json" {
			for _, f := range result.Findings {
				fmt.Fprintf(s.out.Writer, "  %s\n", f)
			}
		}
		return NewExitError(ExitFailure, msg)
	}

	return s.out.Result(result, "%d round(s) audited, no findings", result.Eras)
}
