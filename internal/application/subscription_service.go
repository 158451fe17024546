package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	productDomain "github.com/widgetworks/service-subscription/internal/domain/product"
	subDomain "github.com/widgetworks/service-subscription/internal/domain/subscription"
	txDomain "github.com/widgetworks/service-subscription/internal/domain/transaction"
	userDomain "github.com/widgetworks/service-subscription/internal/domain/user"
	"github.com/widgetworks/service-subscription/internal/events"
)

// TxRunner executes a unit of work inside one storage transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AddressDTO carries a postal address over the API.
type AddressDTO struct {
	Addr1      string `json:"addr1" binding:"required"`
	Addr2      string `json:"addr2"`
	Addr3      string `json:"addr3"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	Country    string `json:"country" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
}

// UserDTO is the API shape of a user reference.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
}

// SubscriptionDTO is the API response for a subscription.
type SubscriptionDTO struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	ProductID       uuid.UUID `json:"product_id"`
	ShipToAddressID uuid.UUID `json:"ship_to_address_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	State           string    `json:"state"`
	Terms           string    `json:"terms"`
	CreatedAt       time.Time `json:"created_at"`
}

// SubscriptionDetailDTO is a subscription with its references expanded.
type SubscriptionDetailDTO struct {
	SubscriptionDTO
	User          *UserDTO    `json:"user,omitempty"`
	Product       *ProductDTO `json:"product,omitempty"`
	ShipToAddress *AddressDTO `json:"ship_to_address,omitempty"`
}

// CreateSubscriptionRequest holds data to create a subscription.
type CreateSubscriptionRequest struct {
	UserEmail     string      `json:"user_email" binding:"required,email"`
	Product       string      `json:"product" binding:"required"`
	Terms         string      `json:"terms"`
	ShipToAddress *AddressDTO `json:"ship_to_address"`
}

// SubscriptionKeyRequest identifies a subscription by user and product.
type SubscriptionKeyRequest struct {
	UserEmail string `json:"user_email" binding:"required,email"`
	Product   string `json:"product" binding:"required"`
}

// SubscriptionService is the lifecycle manager: it orchestrates create,
// renew, cancel, and expire, pairing every state change with exactly one
// transaction-log row in the same storage transaction.
type SubscriptionService struct {
	subs      subDomain.SubscriptionRepository
	users     userDomain.UserRepository
	products  productDomain.ProductRepository
	addresses userDomain.AddressRepository
	txLog     txDomain.Log
	tx        TxRunner
	publisher events.Publisher
	logger    *zap.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(
	subs subDomain.SubscriptionRepository,
	users userDomain.UserRepository,
	products productDomain.ProductRepository,
	addresses userDomain.AddressRepository,
	txLog txDomain.Log,
	tx TxRunner,
	publisher events.Publisher,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subs:      subs,
		users:     users,
		products:  products,
		addresses: addresses,
		txLog:     txLog,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
	}
}

// List returns subscriptions with user, product, and ship-to expanded.
func (s *SubscriptionService) List(ctx context.Context, params subDomain.ListParams) ([]SubscriptionDetailDTO, error) {
	details, err := s.subs.ListDetailed(ctx, params)
	if err != nil {
		return nil, err
	}

	dtos := make([]SubscriptionDetailDTO, len(details))
	for i, d := range details {
		dtos[i] = toDetailDTO(d)
	}
	return dtos, nil
}

// Create resolves the product and user, then persists a new active
// subscription together with its Transaction(CREATE) row. A supplied
// ship-to address becomes a new owned row; otherwise the subscription
// references the user's billing address.
func (s *SubscriptionService) Create(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionDTO, error) {
	product, err := s.products.FindBySlug(ctx, req.Product)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, req.UserEmail)
	if err != nil {
		return nil, err
	}

	terms, ok := subDomain.ParseTerms(req.Terms)
	if !ok {
		s.logger.Warn("terms not set for subscription, defaulting to monthly",
			zap.String("terms", req.Terms),
			zap.String("user_email", req.UserEmail),
		)
	}

	var shipTo *userDomain.Address
	shipToID := user.BillingAddressID
	if req.ShipToAddress != nil {
		shipTo = &userDomain.Address{
			ID:         uuid.New(),
			Addr1:      req.ShipToAddress.Addr1,
			Addr2:      req.ShipToAddress.Addr2,
			Addr3:      req.ShipToAddress.Addr3,
			City:       req.ShipToAddress.City,
			State:      req.ShipToAddress.State,
			Country:    req.ShipToAddress.Country,
			PostalCode: req.ShipToAddress.PostalCode,
		}
		shipToID = shipTo.ID
	}

	sub := subDomain.NewSubscription(user.ID, product.ID, shipToID, terms, time.Now())

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if shipTo != nil {
			if err := s.addresses.Create(ctx, shipTo); err != nil {
				return err
			}
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return err
		}
		return s.txLog.Append(ctx, sub.ID(), txDomain.TypeCreate, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.String("subscription_id", sub.ID().String()),
		zap.String("user_email", req.UserEmail),
		zap.String("product", req.Product),
		zap.String("terms", string(terms)),
	)
	s.publisher.PublishLifecycle(ctx, events.SubscriptionCreated, sub)

	return toSubDTO(sub), nil
}

// Renew extends the subscription by one term relative to its current expiry
// and forces it back to active, logging a Transaction(RENEW).
func (s *SubscriptionService) Renew(ctx context.Context, req SubscriptionKeyRequest) (*SubscriptionDTO, error) {
	sub, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	sub.Renew()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
		return s.txLog.Append(ctx, sub.ID(), txDomain.TypeRenew, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription renewed",
		zap.String("subscription_id", sub.ID().String()),
		zap.Time("expires_at", sub.ExpiresAt()),
	)
	s.publisher.PublishLifecycle(ctx, events.SubscriptionRenewed, sub)

	return toSubDTO(sub), nil
}

// Cancel marks the subscription canceled, leaving the expiry untouched,
// and logs a Transaction(CANCEL).
func (s *SubscriptionService) Cancel(ctx context.Context, req SubscriptionKeyRequest) (*SubscriptionDTO, error) {
	sub, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	sub.Cancel()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
		return s.txLog.Append(ctx, sub.ID(), txDomain.TypeCancel, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription cancelled",
		zap.String("subscription_id", sub.ID().String()),
	)
	s.publisher.PublishLifecycle(ctx, events.SubscriptionCanceled, sub)

	return toSubDTO(sub), nil
}

// Expire transitions one subscription to expired, only from active. The
// Transaction(EXPIRE) row is written only when the conditional update
// actually changed a row, so the audit log never claims an expiration that
// did not happen.
func (s *SubscriptionService) Expire(ctx context.Context, id uuid.UUID) (*SubscriptionDTO, error) {
	if _, err := s.subs.FindByID(ctx, id); err != nil {
		return nil, err
	}

	var changed bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		changed, err = s.subs.ExpireIfActive(ctx, id)
		if err != nil {
			return err
		}
		if changed {
			return s.txLog.Append(ctx, id, txDomain.TypeExpire, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("subscription expired", zap.String("subscription_id", id.String()))
		s.publisher.PublishLifecycle(ctx, events.SubscriptionExpired, sub)
	}
	return toSubDTO(sub), nil
}

// ExpirationReaper sweeps all active subscriptions past their expiry. Each
// row's conditional update and audit row share an isolated transaction;
// rows run concurrently and one row's failure never aborts the rest.
// It returns the number of subscriptions transitioned.
func (s *SubscriptionService) ExpirationReaper(ctx context.Context) (int, error) {
	expired, err := s.subs.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reaped   int
		failures int
	)
	for _, sub := range expired {
		wg.Add(1)
		go func(sub *subDomain.Subscription) {
			defer wg.Done()

			var changed bool
			err := s.tx.InTx(ctx, func(ctx context.Context) error {
				var err error
				changed, err = s.subs.ExpireIfActive(ctx, sub.ID())
				if err != nil {
					return err
				}
				if changed {
					return s.txLog.Append(ctx, sub.ID(), txDomain.TypeExpire, "")
				}
				return nil
			})
			if err != nil {
				s.logger.Error("failed to expire subscription",
					zap.Error(err),
					zap.String("subscription_id", sub.ID().String()),
				)
				mu.Lock()
				failures++
				mu.Unlock()
				return
			}
			if changed {
				// Publish the post-transition state, not the stale row.
				expiredSub := subDomain.Reconstruct(
					sub.ID(), sub.UserID(), sub.ProductID(), sub.ShipToAddressID(),
					sub.ExpiresAt(), subDomain.StateExpired, sub.Terms(),
					sub.CreatedAt(), time.Now().UTC(),
				)
				s.publisher.PublishLifecycle(ctx, events.SubscriptionExpired, expiredSub)
				mu.Lock()
				reaped++
				mu.Unlock()
			}
		}(sub)
	}
	wg.Wait()

	s.logger.Info("expiration sweep completed",
		zap.Int("eligible", len(expired)),
		zap.Int("expired", reaped),
		zap.Int("failures", failures),
	)
	return reaped, nil
}

// resolve looks up the unique subscription for a user email and product
// slug, in any state.
func (s *SubscriptionService) resolve(ctx context.Context, req SubscriptionKeyRequest) (*subDomain.Subscription, error) {
	user, err := s.users.FindByEmail(ctx, req.UserEmail)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindBySlug(ctx, req.Product)
	if err != nil {
		return nil, err
	}
	return s.subs.FindByUserAndProduct(ctx, user.ID, product.ID)
}

func toSubDTO(s *subDomain.Subscription) *SubscriptionDTO {
	return &SubscriptionDTO{
		ID:              s.ID(),
		UserID:          s.UserID(),
		ProductID:       s.ProductID(),
		ShipToAddressID: s.ShipToAddressID(),
		ExpiresAt:       s.ExpiresAt(),
		State:           string(s.State()),
		Terms:           string(s.Terms()),
		CreatedAt:       s.CreatedAt(),
	}
}

func toDetailDTO(d subDomain.Detail) SubscriptionDetailDTO {
	dto := SubscriptionDetailDTO{SubscriptionDTO: *toSubDTO(d.Subscription)}
	if d.User != nil {
		dto.User = &UserDTO{
			ID:        d.User.ID,
			Email:     d.User.Email,
			FirstName: d.User.FirstName,
			LastName:  d.User.LastName,
			Phone:     d.User.Phone,
		}
	}
	if d.Product != nil {
		dto.Product = toProductDTO(d.Product)
	}
	if d.ShipTo != nil {
		dto.ShipToAddress = &AddressDTO{
			Addr1:      d.ShipTo.Addr1,
			Addr2:      d.ShipTo.Addr2,
			Addr3:      d.ShipTo.Addr3,
			City:       d.ShipTo.City,
			State:      d.ShipTo.State,
			Country:    d.ShipTo.Country,
			PostalCode: d.ShipTo.PostalCode,
		}
	}
	return dto
}
