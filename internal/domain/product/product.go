// Package product holds the catalog entities. Products are immutable during
// subscription operations.
package product

import "github.com/google/uuid"

// State is the catalog-readiness state of a product.
type State string

const (
	StateDraft   State = "DRAFT"
	StateGA      State = "GA"
	StateRetired State = "RETIRED"
)

// Product is a catalog entry identified externally by its unique slug.
type Product struct {
	ID          uuid.UUID
	SKU         string
	Slug        string
	Description string
	State       State
}
