package order

import "math"

// PriceWithMarkup applies the configured markup percentage to a base price.
// All user-facing amounts are whole RUB.
func PriceWithMarkup(basePrice, markupPercent float64) int64 {
	return int64(math.Round(basePrice * (1.0 + markupPercent/100.0)))
}

// BonusSplit resolves how much of the marked-up price a bonus balance covers.
// The spend never exceeds either the balance or the price.
func BonusSplit(priceAfterMarkup, bonusBalance int64) (spend, finalPrice int64) {
	spend = bonusBalance
	if spend > priceAfterMarkup {
		spend = priceAfterMarkup
	}
	return spend, priceAfterMarkup - spend
}

// DisplayPrice is the amount a chat message should show for the order: the
// stored final price when one was settled, otherwise the marked-up base price.
func (s *Summary) DisplayPrice(markupPercent float64) int64 {
	if s.FinalPrice != nil {
		return *s.FinalPrice
	}
	return PriceWithMarkup(s.BasePrice, markupPercent)
}
