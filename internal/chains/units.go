package chains

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FromWei 最小单位转人类可读数量
func FromWei(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToWei 人类可读数量转最小单位，多余的小数位截断
func ToWei(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}
