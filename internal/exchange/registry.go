package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pointex/internal/model"
)

// Registry owns the ranked application list of each era: admission,
// eviction, point refresh and the reward list view.
//
// Registry is stateless apart from its collaborators; all round state is
// read from and staged into the Txn passed to each call.
type Registry struct {
	points          PointSource
	clock           EraClock
	maxRewardCount  int
	resortOnRefresh bool
	log             *slog.Logger
}

// NewRegistry creates a registry admitting at most maxRewardCount entries
// per round.
func NewRegistry(points PointSource, clock EraClock, maxRewardCount uint32, resortOnRefresh bool, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		points:          points,
		clock:           clock,
		maxRewardCount:  int(maxRewardCount),
		resortOnRefresh: resortOnRefresh,
		log:             log,
	}
}

// Refresh re-reads the point snapshot of every entry of era's round, at most
// once per block.
//
// Returns false without doing anything when the round is settled. Returns
// true when the round was refreshed now or already at the current block.
//
// Entries are not re-sorted unless the registry was built with
// resortOnRefresh.
func (r *Registry) Refresh(ctx context.Context, tx *Txn, era model.Era) (bool, error) {
	round, exists, err := tx.Round(ctx, era)
	if err != nil {
		return false, err
	}
	if round.IsSettled() {
		return false, nil
	}

	height := r.clock.BlockHeight()
	marker, ok, err := tx.RefreshMarker(ctx, era)
	if err != nil {
		return false, err
	}
	if ok && marker == height {
		return true, nil
	}

	changed := 0
	for i := range round {
		points, err := r.points.TotalPoints(ctx, round[i].Account)
		if err != nil {
			return false, fmt.Errorf("refresh era %d: points of %s: %w", era, round[i].Account.Hex(), err)
		}
		if points != round[i].Points {
			changed++
		}
		round[i].Points = points
	}
	if r.resortOnRefresh {
		round.SortDescending()
	}

	if exists {
		tx.PutRound(era, round)
	}
	tx.PutRefreshMarker(era, height)

	if changed > 0 {
		r.log.Debug("round refreshed", "era", era, "block", height, "changed", changed)
	}
	return true, nil
}

// Apply admits account into era's round with its current point total.
//
// While the round has room any entrant with points is ranked in. Once the
// round is at capacity a new entrant must strictly outrank the lowest entry,
// which it then evicts.
func (r *Registry) Apply(ctx context.Context, tx *Txn, era model.Era, account model.AccountID) error {
	if era == 0 {
		return newAccountError(CodeInvalidEra, era, account, "no rewards in the genesis era")
	}

	prev, ok, err := tx.Round(ctx, era-1)
	if err != nil {
		return err
	}
	if ok && !prev.IsSettled() {
		return newAccountError(CodePreviousEraUnsettled, era, account, "era %d has not been settled", era-1)
	}

	points, err := r.points.TotalPoints(ctx, account)
	if err != nil {
		return fmt.Errorf("apply era %d: points of %s: %w", era, account.Hex(), err)
	}
	if points == 0 {
		return newAccountError(CodeInsufficientPoints, era, account, "account holds no points")
	}

	fresh, err := r.Refresh(ctx, tx, era)
	if err != nil {
		return err
	}
	if !fresh {
		return newAccountError(CodeAlreadySettled, era, account, "round is settled")
	}

	round, _, err := tx.Round(ctx, era)
	if err != nil {
		return err
	}
	entrant := model.Application{Account: account, Points: points}

	if len(round) == 0 {
		tx.PutRound(era, model.Round{entrant})
		tx.PutRefreshMarker(era, r.clock.BlockHeight())
		r.log.Info("application admitted", "era", era, "account", account.Hex(), "points", points, "rank", 1)
		return nil
	}

	if round.Contains(account) {
		return newAccountError(CodeDuplicateApplication, era, account, "account already applied")
	}

	var evicted model.Round
	if len(round) < r.maxRewardCount {
		// Appended last so equal points keep insertion order.
		round = append(round, entrant)
		round.SortDescending()
	} else {
		worst, _ := round.Last()
		if points <= worst.Points {
			return newAccountError(CodeInsufficientPoints, era, account,
				"%d points do not outrank the lowest entry (%d)", points, worst.Points)
		}

		// The entrant takes the last slot, the previous last entry goes
		// back behind it, and the stable sort puts both in place. Whatever
		// falls past capacity is evicted. When a refresh left the round
		// unsorted that is the entry now holding the fewest points, which
		// need not be the one that sat last.
		round = append(round[:len(round)-1], entrant, worst)
		round.SortDescending()
		evicted = round[r.maxRewardCount:].Clone()
		round = round[:r.maxRewardCount]
	}

	tx.PutRound(era, round)
	tx.PutRefreshMarker(era, r.clock.BlockHeight())

	r.log.Info("application admitted", "era", era, "account", account.Hex(), "points", points, "rank", rankOf(round, account))
	for _, app := range evicted {
		r.log.Info("application evicted", "era", era, "account", app.Account.Hex(), "points", app.Points)
	}
	return nil
}

// RewardList returns era's round truncated to the configured capacity.
// Rounds stored under a larger capacity are cut, not re-ranked.
func (r *Registry) RewardList(ctx context.Context, tx *Txn, era model.Era) (model.Round, error) {
	round, _, err := tx.Round(ctx, era)
	if err != nil {
		return nil, err
	}
	return round.Truncate(r.maxRewardCount), nil
}

func rankOf(round model.Round, account model.AccountID) int {
	for i, app := range round {
		if app.Account == account {
			return i + 1
		}
	}
	return 0
}
