package model

import "github.com/shopspring/decimal"

var minorPerMajor = decimal.NewFromInt(100)

// 表示単位 -> 最小単位（セント/コボ）。端数は四捨五入。
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(minorPerMajor).Round(0).IntPart()
}

// 最小単位 -> 表示単位
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorPerMajor)
}
