package model

// Payout is one account's share of a settled round, as handed to a reward
// sink. Delivered flips once the sink accepted the amount.
type Payout struct {
	Batch     string      `json:"batch"`
	Era       Era         `json:"era"`
	Account   AccountID   `json:"account"`
	Amount    TokenAmount `json:"amount"`
	Delivered bool        `json:"delivered"`
}
