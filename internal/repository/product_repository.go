package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/widgetworks/service-subscription/internal/apperror"
	productDomain "github.com/widgetworks/service-subscription/internal/domain/product"
)

// ProductModel is the GORM model for the products table.
type ProductModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SKU         string    `gorm:"type:varchar(100);not null"`
	Slug        string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	State       string    `gorm:"type:varchar(20);not null;default:'GA'"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (ProductModel) TableName() string { return "products" }

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository.
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindBySlug returns the product with the given slug.
func (r *GormProductRepository) FindBySlug(ctx context.Context, slug string) (*productDomain.Product, error) {
	var model ProductModel
	if err := dbFrom(ctx, r.db).Where("slug = ?", slug).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("product", slug)
		}
		return nil, err
	}
	return toProductDomain(&model), nil
}

// List returns products ordered by slug. Without an explicit state filter
// the listing is restricted to generally-available products.
func (r *GormProductRepository) List(ctx context.Context, params productDomain.ListParams) ([]*productDomain.Product, error) {
	state := productDomain.StateGA
	if params.State != nil {
		state = *params.State
	}

	var models []ProductModel
	q := dbFrom(ctx, r.db).
		Where("state = ?", state).
		Order("slug ASC").
		Offset(params.Offset)
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	products := make([]*productDomain.Product, len(models))
	for i := range models {
		products[i] = toProductDomain(&models[i])
	}
	return products, nil
}

func toProductDomain(m *ProductModel) *productDomain.Product {
	return &productDomain.Product{
		ID:          m.ID,
		SKU:         m.SKU,
		Slug:        m.Slug,
		Description: m.Description,
		State:       productDomain.State(m.State),
	}
}
