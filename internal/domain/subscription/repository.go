package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/widgetworks/service-subscription/internal/domain/product"
	"github.com/widgetworks/service-subscription/internal/domain/user"
)

// ListParams controls filtering and pagination for subscription listings.
type ListParams struct {
	State  *State
	Offset int
	Limit  int
}

// Detail is a subscription with its referenced user, product, and ship-to
// address expanded for listings.
type Detail struct {
	Subscription *Subscription
	User         *user.User
	Product      *product.Product
	ShipTo       *user.Address
}

// SubscriptionRepository defines persistence operations for subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *Subscription) error
	Update(ctx context.Context, s *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*Subscription, error)
	ListDetailed(ctx context.Context, params ListParams) ([]Detail, error)
	// ListExpired returns active subscriptions whose expiry is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]*Subscription, error)
	// ExpireIfActive conditionally flips an active subscription to expired and
	// reports whether a row actually changed.
	ExpireIfActive(ctx context.Context, id uuid.UUID) (bool, error)
}
