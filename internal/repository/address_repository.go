package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	userDomain "github.com/widgetworks/service-subscription/internal/domain/user"
)

// AddressModel is the GORM model for the addresses table. Address lines are
// opaque PII strings.
type AddressModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Addr1      string    `gorm:"type:varchar(255);not null"`
	Addr2      string    `gorm:"type:varchar(255)"`
	Addr3      string    `gorm:"type:varchar(255)"`
	City       string    `gorm:"type:varchar(100);not null"`
	State      string    `gorm:"type:varchar(100)"`
	Country    string    `gorm:"type:varchar(100);not null"`
	PostalCode string    `gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (AddressModel) TableName() string { return "addresses" }

// GormAddressRepository implements AddressRepository using GORM.
type GormAddressRepository struct {
	db *gorm.DB
}

// NewGormAddressRepository creates a new GormAddressRepository.
func NewGormAddressRepository(db *gorm.DB) *GormAddressRepository {
	return &GormAddressRepository{db: db}
}

// Create persists a new address row.
func (r *GormAddressRepository) Create(ctx context.Context, a *userDomain.Address) error {
	model := AddressModel{
		ID:         a.ID,
		Addr1:      a.Addr1,
		Addr2:      a.Addr2,
		Addr3:      a.Addr3,
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		CreatedAt:  time.Now().UTC(),
	}
	return dbFrom(ctx, r.db).Create(&model).Error
}

func toAddressDomain(m *AddressModel) *userDomain.Address {
	return &userDomain.Address{
		ID:         m.ID,
		Addr1:      m.Addr1,
		Addr2:      m.Addr2,
		Addr3:      m.Addr3,
		City:       m.City,
		State:      m.State,
		Country:    m.Country,
		PostalCode: m.PostalCode,
	}
}
