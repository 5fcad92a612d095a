package orders

import "fmt"

// PriceItems prices the requested items against the given products, capturing
// each product's current unit price into the resulting line items. The total
// is the sum of quantity * captured unit price and is fixed from here on.
func PriceItems(products map[int64]Product, items []ItemInput) ([]OrderItem, int, error) {
	lines := make([]OrderItem, 0, len(items))
	total := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, 0, fmt.Errorf("product %d: %w", it.ProductID, ErrInvalidQuantity)
		}
		p, ok := products[it.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("product %d: %w", it.ProductID, ErrProductNotFound)
		}
		lines = append(lines, OrderItem{
			ProductID:      p.ID,
			Quantity:       it.Quantity,
			UnitPriceCents: p.PriceCents,
		})
		total += it.Quantity * p.PriceCents
	}
	return lines, total, nil
}
