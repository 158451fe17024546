package product

import "context"

// ListParams controls filtering and pagination for product listings.
// A nil State restricts the listing to generally-available products.
type ListParams struct {
	State  *State
	Offset int
	Limit  int
}

// ProductRepository defines read access to the product catalog.
type ProductRepository interface {
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, params ListParams) ([]*Product, error)
}
