package service

// FeeCalculator считает комиссию платформы. Все суммы в центах.
type FeeCalculator struct {
	percent int64
	fixed   int64
}

// NewFeeCalculator создаёт калькулятор с процентной и фиксированной частями.
func NewFeeCalculator(percent, fixed int64) *FeeCalculator {
	return &FeeCalculator{percent: percent, fixed: fixed}
}

// PlatformFee возвращает комиссию платформы: процентная часть округляется
// арифметически, затем прибавляется фиксированная.
func (c *FeeCalculator) PlatformFee(amount int64) int64 {
	percentPart := (amount*c.percent + 50) / 100
	return percentPart + c.fixed
}

// Payout возвращает долю техника. Всегда выполняется
// PlatformFee(amount) + Payout(amount) == amount.
func (c *FeeCalculator) Payout(amount int64) int64 {
	return amount - c.PlatformFee(amount)
}

// Split возвращает обе части сразу.
func (c *FeeCalculator) Split(amount int64) (fee, payout int64) {
	fee = c.PlatformFee(amount)
	return fee, amount - fee
}
