package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ecommerce-labs/order-fulfillment/internal/orders"
)

type fakeProductStore struct {
	products map[int64]*orders.Product
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{products: map[int64]*orders.Product{}}
}

func (s *fakeProductStore) CreateProduct(ctx context.Context, p orders.Product) (*orders.Product, error) {
	for _, ex := range s.products {
		if ex.SKU == p.SKU {
			return nil, fmt.Errorf("sku %q: %w", p.SKU, orders.ErrDuplicateSKU)
		}
	}
	p.ID = int64(len(s.products) + 1)
	s.products[p.ID] = &p
	return &p, nil
}

func (s *fakeProductStore) GetProduct(ctx context.Context, id int64) (*orders.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, orders.ErrProductNotFound
	}
	return p, nil
}

func (s *fakeProductStore) ListProducts(ctx context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeProductStore) UpdateProduct(ctx context.Context, id int64, upd orders.ProductUpdate) (*orders.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, orders.ErrProductNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.PriceCents != nil {
		if *upd.PriceCents < 0 {
			return nil, orders.ErrInvalidPrice
		}
		p.PriceCents = *upd.PriceCents
	}
	return p, nil
}

func (s *fakeProductStore) DeleteProduct(ctx context.Context, id int64) error {
	if _, ok := s.products[id]; !ok {
		return orders.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *fakeProductStore) AdjustStock(ctx context.Context, id int64, delta int) (*orders.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, orders.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return nil, fmt.Errorf("product %d stock %d delta %d: %w", id, p.Stock, delta, orders.ErrInsufficientStock)
	}
	p.Stock += delta
	return p, nil
}

func newProductsRouter(store ProductStore) *chi.Mux {
	r := chi.NewRouter()
	(&ProductsHandler{Store: store}).Register(r)
	return r
}

func patchStock(t *testing.T, r http.Handler, id int64, delta int) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(AdjustStockReq{Delta: delta})
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/products/%d/stock", id), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdjustStockOverdraw(t *testing.T) {
	store := newFakeProductStore()
	store.products[1] = &orders.Product{ID: 1, SKU: "KB-01", Name: "Keyboard", Stock: 7}
	router := newProductsRouter(store)

	rec := patchStock(t, router, 1, -8)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overdraw: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if store.products[1].Stock != 7 {
		t.Fatalf("stock changed on rejected adjustment: %d", store.products[1].Stock)
	}

	rec = patchStock(t, router, 1, -7)
	if rec.Code != http.StatusOK {
		t.Fatalf("drain to zero: status = %d, want %d", rec.Code, http.StatusOK)
	}
	var p orders.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Stock != 0 {
		t.Fatalf("stock = %d, want 0", p.Stock)
	}
}

func TestAdjustStockRestock(t *testing.T) {
	store := newFakeProductStore()
	store.products[2] = &orders.Product{ID: 2, SKU: "MS-01", Name: "Mouse", Stock: 3}
	router := newProductsRouter(store)

	rec := patchStock(t, router, 2, 5)
	if rec.Code != http.StatusOK {
		t.Fatalf("restock: status = %d, want %d", rec.Code, http.StatusOK)
	}
	if store.products[2].Stock != 8 {
		t.Fatalf("stock = %d, want 8", store.products[2].Stock)
	}
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	router := newProductsRouter(newFakeProductStore())

	rec := patchStock(t, router, 99, 1)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	store := newFakeProductStore()
	router := newProductsRouter(store)

	body, _ := json.Marshal(CreateProductReq{SKU: "KB-01", Name: "Keyboard", PriceCents: 500, Stock: 2})
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, want %d", rec.Code, http.StatusCreated)
	}

	req = httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate create: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
