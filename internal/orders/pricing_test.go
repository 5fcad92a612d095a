package orders

import (
	"errors"
	"testing"
)

func catalog() map[int64]Product {
	return map[int64]Product{
		1: {ID: 1, SKU: "SKU-A", PriceCents: 500},
		2: {ID: 2, SKU: "SKU-B", PriceCents: 300},
	}
}

func TestPriceItemsTotal(t *testing.T) {
	lines, total, err := PriceItems(catalog(), []ItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1300 {
		t.Errorf("total = %d, want 1300", total)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].UnitPriceCents != 500 || lines[1].UnitPriceCents != 300 {
		t.Errorf("unit prices = %d, %d, want 500, 300", lines[0].UnitPriceCents, lines[1].UnitPriceCents)
	}

	sum := 0
	for _, l := range lines {
		sum += l.Quantity * l.UnitPriceCents
	}
	if sum != total {
		t.Errorf("sum of lines = %d, total = %d", sum, total)
	}
}

func TestPriceItemsCapturesCurrentPrice(t *testing.T) {
	products := catalog()
	lines, _, err := PriceItems(products, []ItemInput{{ProductID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a later price change must not touch the captured line price
	p := products[1]
	p.PriceCents = 9999
	products[1] = p

	if lines[0].UnitPriceCents != 500 {
		t.Errorf("captured price = %d, want 500", lines[0].UnitPriceCents)
	}
}

func TestPriceItemsRejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -3} {
		_, _, err := PriceItems(catalog(), []ItemInput{{ProductID: 1, Quantity: qty}})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("qty %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestPriceItemsUnknownProduct(t *testing.T) {
	_, _, err := PriceItems(catalog(), []ItemInput{{ProductID: 99, Quantity: 1}})
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}
