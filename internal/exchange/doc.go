// Package exchange implements the era-based point-to-token exchange.
//
// Participants apply during an era with their current point balance. Each
// era owns a round: a ranked, capacity-bounded list of applications. Once the
// era has elapsed the round is settled exactly once, splitting a fixed mint
// amount across the ranked applicants in proportion to their points.
//
// ARCHITECTURE:
//
//	Clock ──> EraClock ──┐
//	PointSource ─────────┼──> Registry ──> Txn ──> StateStore
//	                     └──> Engine ──────────┘       │
//	                            └──> RewardSink <── payouts
//
// Every Apply or Settle call stages its writes in a Txn and commits them in
// one StateStore.Commit. A rejected call commits nothing, so no partial
// admission or settlement is ever observable.
//
// SEQUENCING:
//
// Eras are settled strictly in increasing order and each at most once.
// Applying to era E is rejected while era E-1 holds an unsettled round, so
// settlement has to keep pace with intake. None of the operations block: a
// caller that must wait for an era to close receives a rejection and retries
// later.
//
// ROUNDING:
//
// Settlement walks the round from the highest to the lowest ranked entry.
// Every entry but the last receives floor(points/total) of the pool; the last
// entry receives the remainder of both the proportion and the token amount,
// so the payouts always add up to the mint amount exactly.
package exchange
