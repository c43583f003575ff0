package model

// EntryView is the presentation form of one ranked application.
type EntryView struct {
	Rank       int    `json:"rank"`
	Account    string `json:"account"`
	Points     uint64 `json:"points"`
	Proportion string `json:"proportion,omitempty"`
	PayPoint   uint64 `json:"pay_point,omitempty"`
	TakeToken  string `json:"take_token,omitempty"`
}

// RoundView is the presentation form of a round, shared by the CLI, the
// inspection API and scenario reports.
type RoundView struct {
	Era     Era         `json:"era"`
	Settled bool        `json:"settled"`
	Digest  string      `json:"digest,omitempty"`
	Mint    string      `json:"mint,omitempty"`
	Entries []EntryView `json:"entries"`
}

// NewRoundView renders round. Settled rounds carry their digest and the
// minted total.
func NewRoundView(era Era, round Round) RoundView {
	v := RoundView{Era: era, Settled: round.IsSettled(), Entries: make([]EntryView, len(round))}

	var mint TokenAmount
	for i, app := range round {
		e := EntryView{Rank: i + 1, Account: app.Account.Hex(), Points: uint64(app.Points)}
		if s := app.Settlement; s != nil {
			e.Proportion = s.Proportion.String()
			e.PayPoint = uint64(s.PayPoint)
			e.TakeToken = s.TakeToken.String()
			mint = mint.Add(s.TakeToken)
		}
		v.Entries[i] = e
	}

	if v.Settled {
		v.Mint = mint.String()
		// Partially settled rounds have no digest.
		if d, err := SettlementDigest(era, round); err == nil {
			v.Digest = d
		}
	}
	return v
}
