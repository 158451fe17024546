package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/widgetworks/service-subscription/internal/apperror"
	userDomain "github.com/widgetworks/service-subscription/internal/domain/user"
)

// UserModel is the GORM model for the users table. Phone is stored as an
// opaque string; field-level encryption happens outside this service.
type UserModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email            string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName        string    `gorm:"type:varchar(100)"`
	LastName         string    `gorm:"type:varchar(100)"`
	Phone            string    `gorm:"type:varchar(255)"`
	BillingAddressID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (UserModel) TableName() string { return "users" }

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByEmail returns the user with the given email.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	var model UserModel
	if err := dbFrom(ctx, r.db).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, err
	}
	return toUserDomain(&model), nil
}

// FindByID returns the user with the given id.
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var model UserModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", id.String())
		}
		return nil, err
	}
	return toUserDomain(&model), nil
}

// List returns users ordered by creation time.
func (r *GormUserRepository) List(ctx context.Context, params userDomain.ListParams) ([]*userDomain.User, error) {
	var models []UserModel
	q := dbFrom(ctx, r.db).Order("created_at ASC").Offset(params.Offset)
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]*userDomain.User, len(models))
	for i := range models {
		users[i] = toUserDomain(&models[i])
	}
	return users, nil
}

func toUserDomain(m *UserModel) *userDomain.User {
	return &userDomain.User{
		ID:               m.ID,
		Email:            m.Email,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		Phone:            m.Phone,
		BillingAddressID: m.BillingAddressID,
	}
}
