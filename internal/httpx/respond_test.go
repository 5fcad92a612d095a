package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ecommerce-labs/order-fulfillment/internal/orders"
)

func TestStatusFromErr(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{orders.ErrOrderNotFound, http.StatusNotFound},
		{orders.ErrProductNotFound, http.StatusNotFound},
		{fmt.Errorf("pay order 1 in status PAID: %w", orders.ErrInvalidTransition), http.StatusBadRequest},
		{orders.ErrInsufficientStock, http.StatusBadRequest},
		{orders.ErrInvalidQuantity, http.StatusBadRequest},
		{orders.ErrNoItems, http.StatusBadRequest},
		{orders.ErrDuplicateSKU, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFromErr(c.err); got != c.want {
			t.Errorf("statusFromErr(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
