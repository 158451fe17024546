package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/widgetworks/service-subscription/internal/apperror"
	subDomain "github.com/widgetworks/service-subscription/internal/domain/subscription"
)

// SubscriptionModel is the GORM model for the subscriptions table. The
// composite unique index on (user_id, product_id) is the concurrency control
// point preventing duplicate subscriptions.
type SubscriptionModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_user_product"`
	ProductID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_user_product"`
	ShipToAddressID uuid.UUID `gorm:"type:uuid;not null"`
	ExpiresAt       time.Time `gorm:"not null;index"`
	State           string    `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Terms           string    `gorm:"type:varchar(20);not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`

	User    *UserModel    `gorm:"foreignKey:UserID"`
	Product *ProductModel `gorm:"foreignKey:ProductID"`
	ShipTo  *AddressModel `gorm:"foreignKey:ShipToAddressID"`
}

// TableName sets the table name.
func (SubscriptionModel) TableName() string { return "subscriptions" }

// GormSubscriptionRepository implements SubscriptionRepository using GORM.
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository.
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Create persists a new subscription. A violation of the (user, product)
// unique constraint is surfaced as a conflict.
func (r *GormSubscriptionRepository) Create(ctx context.Context, s *subDomain.Subscription) error {
	model := toSubModel(s)
	if err := dbFrom(ctx, r.db).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Conflict("subscription already exists for this user and product", err)
		}
		return err
	}
	return nil
}

// Update writes the subscription's current state back to storage.
func (r *GormSubscriptionRepository) Update(ctx context.Context, s *subDomain.Subscription) error {
	model := toSubModel(s)
	return dbFrom(ctx, r.db).Save(&model).Error
}

// FindByID returns a subscription by id.
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*subDomain.Subscription, error) {
	var model SubscriptionModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("subscription", id.String())
		}
		return nil, err
	}
	return toSubDomain(&model), nil
}

// FindByUserAndProduct returns the unique subscription for a user/product
// pair, in any state.
func (r *GormSubscriptionRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*subDomain.Subscription, error) {
	var model SubscriptionModel
	if err := dbFrom(ctx, r.db).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("subscription", userID.String()+"/"+productID.String())
		}
		return nil, err
	}
	return toSubDomain(&model), nil
}

// ListDetailed returns subscriptions with user, product, and ship-to
// address expanded.
func (r *GormSubscriptionRepository) ListDetailed(ctx context.Context, params subDomain.ListParams) ([]subDomain.Detail, error) {
	var models []SubscriptionModel
	q := dbFrom(ctx, r.db).
		Preload("User").
		Preload("Product").
		Preload("ShipTo").
		Order("created_at ASC").
		Offset(params.Offset)
	if params.State != nil {
		q = q.Where("state = ?", *params.State)
	}
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	details := make([]subDomain.Detail, len(models))
	for i := range models {
		d := subDomain.Detail{Subscription: toSubDomain(&models[i])}
		if models[i].User != nil {
			d.User = toUserDomain(models[i].User)
		}
		if models[i].Product != nil {
			d.Product = toProductDomain(models[i].Product)
		}
		if models[i].ShipTo != nil {
			d.ShipTo = toAddressDomain(models[i].ShipTo)
		}
		details[i] = d
	}
	return details, nil
}

// ListExpired returns active subscriptions whose expiry is at or before now.
func (r *GormSubscriptionRepository) ListExpired(ctx context.Context, now time.Time) ([]*subDomain.Subscription, error) {
	var models []SubscriptionModel
	if err := dbFrom(ctx, r.db).
		Where("state = ? AND expires_at <= ?", subDomain.StateActive, now.UTC()).
		Find(&models).Error; err != nil {
		return nil, err
	}

	subs := make([]*subDomain.Subscription, len(models))
	for i := range models {
		subs[i] = toSubDomain(&models[i])
	}
	return subs, nil
}

// ExpireIfActive flips an active subscription to expired and reports whether
// a row actually changed. Rows already canceled or expired are untouched.
func (r *GormSubscriptionRepository) ExpireIfActive(ctx context.Context, id uuid.UUID) (bool, error) {
	res := dbFrom(ctx, r.db).
		Model(&SubscriptionModel{}).
		Where("id = ? AND state = ?", id, subDomain.StateActive).
		Updates(map[string]interface{}{
			"state":      subDomain.StateExpired,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func toSubModel(s *subDomain.Subscription) SubscriptionModel {
	return SubscriptionModel{
		ID:              s.ID(),
		UserID:          s.UserID(),
		ProductID:       s.ProductID(),
		ShipToAddressID: s.ShipToAddressID(),
		ExpiresAt:       s.ExpiresAt(),
		State:           string(s.State()),
		Terms:           string(s.Terms()),
		CreatedAt:       s.CreatedAt(),
		UpdatedAt:       s.UpdatedAt(),
	}
}

func toSubDomain(m *SubscriptionModel) *subDomain.Subscription {
	return subDomain.Reconstruct(
		m.ID, m.UserID, m.ProductID, m.ShipToAddressID,
		m.ExpiresAt, subDomain.State(m.State), subDomain.Terms(m.Terms),
		m.CreatedAt, m.UpdatedAt,
	)
}
