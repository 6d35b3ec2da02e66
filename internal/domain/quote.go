package domain

// QuoteDelivery is a normalized quote callback ready for reconciliation.
// Exactly one of TotalPrice or Quotes carries the price: when Quotes is
// non-empty the delivery is itemized and the final price is the sum of
// the markup prices.
type QuoteDelivery struct {
	RequestID     string
	CustomerPhone string
	Destination   string
	TotalPrice    float64
	Quotes        []VendorQuote
}

// FinalPrice returns the customer-facing price: the sum of vendor markup
// prices when itemized, otherwise the flat total.
func (d *QuoteDelivery) FinalPrice() float64 {
	if len(d.Quotes) == 0 {
		return d.TotalPrice
	}
	var sum float64
	for _, q := range d.Quotes {
		sum += q.MarkupPrice
	}
	return sum
}

// Itemized reports whether the delivery carries per-vendor lines.
func (d *QuoteDelivery) Itemized() bool {
	return len(d.Quotes) > 0
}
