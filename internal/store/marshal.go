package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/pointex/internal/model"
)

// formatUint renders an unsigned quantity as decimal TEXT.
func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseUint parses decimal TEXT written by formatUint.
func parseUint(column, data string) (uint64, error) {
	v, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", column, data, err)
	}
	return v, nil
}

// marshalAccount stores an account as its lowercase 0x-prefixed hex form so
// equality in SQL matches equality of addresses.
func marshalAccount(a model.AccountID) string {
	return "0x" + common.Bytes2Hex(a.Bytes())
}

func unmarshalAccount(data string) (model.AccountID, error) {
	if !common.IsHexAddress(data) {
		return model.AccountID{}, fmt.Errorf("parse account %q: not a hex address", data)
	}
	return common.HexToAddress(data), nil
}

func unmarshalToken(column, data string) (model.TokenAmount, error) {
	v, err := model.ParseTokenAmount(data)
	if err != nil {
		return model.TokenAmount{}, fmt.Errorf("parse %s: %w", column, err)
	}
	return v, nil
}

// settlementColumns holds the nullable settlement columns of a round row.
type settlementColumns struct {
	parts     sql.NullString
	precision sql.NullInt64
	payPoint  sql.NullString
	takeToken sql.NullString
}

// marshalSettlement flattens info into nullable columns. A nil info stores
// NULL in every column.
func marshalSettlement(info *model.SettlementInfo) []any {
	if info == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{
		formatUint(info.Proportion.Parts),
		int64(info.Proportion.Precision),
		formatUint(uint64(info.PayPoint)),
		info.TakeToken.String(),
	}
}

// unmarshal rebuilds the settlement of a row, or nil when the row is open.
// A row with some but not all columns set is rejected.
func (c settlementColumns) unmarshal() (*model.SettlementInfo, error) {
	set := 0
	for _, valid := range []bool{c.parts.Valid, c.precision.Valid, c.payPoint.Valid, c.takeToken.Valid} {
		if valid {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 4:
	default:
		return nil, fmt.Errorf("partial settlement columns (%d of 4 set)", set)
	}

	parts, err := parseUint("proportion_parts", c.parts.String)
	if err != nil {
		return nil, err
	}
	if c.precision.Int64 < 0 || c.precision.Int64 > model.MaxPrecision {
		return nil, fmt.Errorf("proportion precision %d out of range", c.precision.Int64)
	}
	payPoint, err := parseUint("pay_point", c.payPoint.String)
	if err != nil {
		return nil, err
	}
	take, err := unmarshalToken("take_token", c.takeToken.String)
	if err != nil {
		return nil, err
	}
	return &model.SettlementInfo{
		Proportion: model.Fraction{Parts: parts, Precision: uint8(c.precision.Int64)},
		PayPoint:   model.PointAmount(payPoint),
		TakeToken:  take,
	}, nil
}
