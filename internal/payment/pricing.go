package payment

const (
	// BasePrice covers the first chair, in whole euros.
	BasePrice = 10
	// ExtraChairPrice is charged for every chair after the first.
	ExtraChairPrice = 5
)

// CalculateOrderAmount returns the price in whole currency units for a place
// with the given number of chairs.
func CalculateOrderAmount(chairs int) int {
	if chairs <= 1 {
		return BasePrice
	}
	return BasePrice + (chairs-1)*ExtraChairPrice
}

// MinorUnits converts whole units to cents.
func MinorUnits(amount int) int64 { return int64(amount) * 100 }
