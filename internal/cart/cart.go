// Package cart keeps the shopper's cart on the client until checkout freezes it into an order.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/motodetail-shop/internal/product"
)

var ErrOutOfStock = errors.New("product is out of stock")

// Item is one cart line. UnitPrice is the price captured when the line was added.
type Item struct {
	ProductID      int64           `json:"product_id"`
	VariationID    *int64          `json:"variation_id,omitempty"`
	Name           string          `json:"name"`
	VariationLabel string          `json:"variation_label,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
}

func (it Item) matches(productID int64, variationID *int64) bool {
	if it.ProductID != productID {
		return false
	}
	if it.VariationID == nil || variationID == nil {
		return it.VariationID == nil && variationID == nil
	}
	return *it.VariationID == *variationID
}

// DisplayName is the product name with the variation label, if any.
func (it Item) DisplayName() string {
	if it.VariationLabel == "" {
		return it.Name
	}
	return it.Name + " (" + it.VariationLabel + ")"
}

// Store is the cart. Every mutation writes the whole cart to Storage;
// a failed write is logged and the in-memory cart stays authoritative.
type Store struct {
	mu      sync.Mutex
	key     string
	items   []Item
	storage Storage
}

// Open loads the cart saved under key. A missing or unreadable blob yields an empty cart.
func Open(ctx context.Context, storage Storage, key string) *Store {
	s := &Store{key: key, storage: storage}
	b, err := storage.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNotStored):
	case err != nil:
		log.Printf("[cart] load %s: %v", key, err)
	default:
		var items []Item
		if err := json.Unmarshal(b, &items); err != nil {
			log.Printf("[cart] decode %s: %v", key, err)
			break
		}
		for _, it := range items {
			if it.Quantity >= 1 {
				s.items = append(s.items, it)
			}
		}
	}
	return s
}

// AddItem adds one unit of the product, or of its variation when v is not nil.
// An out-of-stock product or variation leaves the cart untouched.
func (s *Store) AddItem(p product.Product, v *product.Variation) error {
	inStock, price := p.InStock, p.Price
	var variationID *int64
	label := ""
	if v != nil {
		inStock, price = v.InStock, v.Price
		id := v.ID
		variationID = &id
		label = v.Label
	}
	if !inStock {
		return ErrOutOfStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].matches(p.ID, variationID) {
			s.items[i].Quantity++
			s.persist()
			return nil
		}
	}
	s.items = append(s.items, Item{
		ProductID:      p.ID,
		VariationID:    variationID,
		Name:           p.Name,
		VariationLabel: label,
		UnitPrice:      price,
		Quantity:       1,
	})
	s.persist()
	return nil
}

// UpdateQuantity sets the quantity of a line. Below 1 the line is removed.
func (s *Store) UpdateQuantity(productID int64, quantity int, variationID *int64) {
	if quantity < 1 {
		s.RemoveItem(productID, variationID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].matches(productID, variationID) {
			s.items[i].Quantity = quantity
			s.persist()
			return
		}
	}
}

func (s *Store) RemoveItem(productID int64, variationID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items[:0]
	for _, it := range s.items {
		if !it.matches(productID, variationID) {
			out = append(out, it)
		}
	}
	s.items = out
	s.persist()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persist()
}

// Items returns a copy of the lines.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// Count is the sum of quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Total is the sum of unit price x quantity.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, it := range s.items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func (s *Store) Empty() bool {
	return s.Count() == 0
}

// persist must be called with mu held.
func (s *Store) persist() {
	items := s.items
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		log.Printf("[cart] encode %s: %v", s.key, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.storage.Save(ctx, s.key, b); err != nil {
		log.Printf("[cart] save %s: %v", s.key, err)
	}
}
