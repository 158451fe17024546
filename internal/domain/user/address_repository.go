package user

import "context"

// AddressRepository persists address rows. Ship-to addresses are duplicated
// per subscription, so creation is the only write the lifecycle needs.
type AddressRepository interface {
	Create(ctx context.Context, a *Address) error
}
