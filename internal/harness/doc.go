// Package harness runs YAML exchange scenarios against a real engine.
//
// Each scenario runs in a fresh in-memory SQLite store with a manual block
// clock and sequential batch ids, so the trace and the final rounds are
// reproducible byte for byte. A scenario is a list of steps:
//
//	block: 50                      # move the clock to height 50
//	advance: 10                    # move the clock forward
//	points: {alice: 50, bob: 30}   # overwrite point balances
//	apply: alice                   # apply for the current era
//	settle: {era: 5, mint: "100"}  # settle an era
//	challenge: 5                   # flag an era as disputed
//	clear: 5                       # lift a dispute
//	retry: true                    # redeliver pending payouts
//
// apply and settle steps may carry expect_error with an exchange error code.
// Assertions check the final rounds, payouts, balances and the last settled
// era. Accounts are named; a name that is not a hex address is mapped to an
// address derived from its bytes.
//
// Golden reports (RunWithGolden) capture the trace and every stored round
// under testdata/golden.
package harness
