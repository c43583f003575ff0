package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainSettlement separates settlement digests from any other hash the
// platform computes. The version suffix allows a future encoding change.
const DomainSettlement = "pointex/settlement/v1"

// digestEntry fixes the field order of the digest encoding.
type digestEntry struct {
	Account   string `json:"account"`
	Points    uint64 `json:"points"`
	Parts     uint64 `json:"parts"`
	Precision uint8  `json:"precision"`
	PayPoint  uint64 `json:"pay_point"`
	TakeToken string `json:"take_token"`
}

type digestBody struct {
	Era     uint64        `json:"era"`
	Entries []digestEntry `json:"entries"`
}

// SettlementDigest computes a content-addressed identifier for a settled
// round: SHA256(domain + 0x00 + json(body)).
//
// Every entry must carry settlement information.
func SettlementDigest(era Era, round Round) (string, error) {
	body := digestBody{Era: uint64(era), Entries: make([]digestEntry, 0, len(round))}
	for i, app := range round {
		if app.Settlement == nil {
			return "", fmt.Errorf("settlement digest: entry %d (%s) is not settled", i, app.Account.Hex())
		}
		body.Entries = append(body.Entries, digestEntry{
			Account:   app.Account.Hex(),
			Points:    uint64(app.Points),
			Parts:     app.Settlement.Proportion.Parts,
			Precision: app.Settlement.Proportion.Precision,
			PayPoint:  uint64(app.Settlement.PayPoint),
			TakeToken: app.Settlement.TakeToken.String(),
		})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("settlement digest: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainSettlement))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
