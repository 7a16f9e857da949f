package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	Variations  []Variation     `json:"variations,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variation is a priced option of a product, e.g. "500 ml" of a polish.
type Variation struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Label     string          `json:"label"`
	Price     decimal.Decimal `json:"price"`
	InStock   bool            `json:"in_stock"`
}

// Variation returns the variation with the given id, or nil.
func (p *Product) Variation(id int64) *Variation {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i]
		}
	}
	return nil
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: not found
	Error string `json:"error"`
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	Q      string    `json:"q,omitempty"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Items  []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name        string `json:"name"        example:"Cera de carnaúba"`
	Description string `json:"description" example:"Proteção para pintura"`
	Price       string `json:"price"       example:"45.90"`
	InStock     *bool  `json:"in_stock"    example:"true"`
	ImageURL    string `json:"image_url"`
}

// UpdateProductRequest payload of partial update. Omitted fields keep their value.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	InStock     *bool  `json:"in_stock"`
	ImageURL    string `json:"image_url"`
}

// CreateVariationRequest payload of a new variation.
// swagger:model CreateVariationRequest
type CreateVariationRequest struct {
	Label   string `json:"label"    example:"500 ml"`
	Price   string `json:"price"    example:"59.90"`
	InStock *bool  `json:"in_stock" example:"true"`
}
