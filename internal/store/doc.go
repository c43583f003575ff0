// Package store provides SQLite-backed durable storage for the exchange.
//
// A Store is the single persistence point of a pointex deployment. It holds:
//   - Rounds: one row per application, ordered by position within an era
//   - Refresh markers: the block at which each era's points were last re-read
//   - Meta: the last settled era and the persisted block height
//   - Payouts: the settlement journal, with a delivered flag per entry
//   - Point ledger and token balances: the bundled collaborators the engine
//     reads points from and pays rewards into
//   - Challenged eras: the dispute flags consulted before settlement
//
// Store implements exchange.StateStore. Commit applies an exchange.Update in
// one SQLite transaction, so a settlement, its payout journal and history
// pruning become visible together or not at all.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// All list queries carry an explicit ORDER BY so results are identical
// across runs.
package store
