// Package pricing computes order totals. It is pure: totals are always
// recomputed server-side from unit prices captured at order time, never
// taken from client input.
package pricing

// Line is a (unit price, quantity) pair.
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Quote is the server-computed price breakdown for a cart.
type Quote struct {
	Subtotal     int64
	ShippingCost int64
	Total        int64
}

// Calculate prices a cart. Shipping is free once the subtotal reaches the
// threshold, otherwise the flat cost applies. All amounts are COP.
func Calculate(lines []Line, shippingCost, freeShippingThreshold int64) Quote {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPrice * int64(l.Quantity)
	}

	shipping := shippingCost
	if subtotal >= freeShippingThreshold {
		shipping = 0
	}

	return Quote{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal + shipping,
	}
}
