package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeCalculator_PlatformFee(t *testing.T) {
	calc := NewFeeCalculator(10, 30)

	// $20.00: 10% = 200, плюс 30 фикс.
	assert.Equal(t, int64(230), calc.PlatformFee(2000))
	assert.Equal(t, int64(1770), calc.Payout(2000))

	// $1.00 — минимальные чаевые.
	assert.Equal(t, int64(40), calc.PlatformFee(100))
	assert.Equal(t, int64(60), calc.Payout(100))
}

func TestFeeCalculator_Rounding(t *testing.T) {
	calc := NewFeeCalculator(3, 0)

	// 3% от 149 = 4.47 -> 4, от 150 = 4.5 -> 5.
	assert.Equal(t, int64(4), calc.PlatformFee(149))
	assert.Equal(t, int64(5), calc.PlatformFee(150))
}

func TestFeeCalculator_SplitInvariant(t *testing.T) {
	calc := NewFeeCalculator(10, 30)

	for _, amount := range []int64{100, 101, 149, 150, 999, 2000, 12345, 100000} {
		fee, payout := calc.Split(amount)
		assert.Equal(t, amount, fee+payout, "amount %d", amount)
		assert.Equal(t, calc.PlatformFee(amount), fee)
	}
}

func TestFeeCalculator_SmallAmountFeeExceedsPayout(t *testing.T) {
	calc := NewFeeCalculator(10, 30)

	// При очень маленьких суммах доля техника может быть нулевой или
	// отрицательной; решение принимает вызывающий код.
	fee, payout := calc.Split(33)
	assert.Equal(t, int64(33), fee)
	assert.Equal(t, int64(0), payout)
}
