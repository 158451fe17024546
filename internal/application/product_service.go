package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/widgetworks/service-subscription/internal/apperror"
	productDomain "github.com/widgetworks/service-subscription/internal/domain/product"
)

// ProductDTO is the API shape of a catalog product.
type ProductDTO struct {
	ID          uuid.UUID `json:"id"`
	SKU         string    `json:"sku"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	State       string    `json:"state"`
}

// ProductService handles catalog read use cases.
type ProductService struct {
	products productDomain.ProductRepository
	logger   *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(products productDomain.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{products: products, logger: logger}
}

// List returns catalog products. Without an explicit state only
// generally-available products are returned.
func (s *ProductService) List(ctx context.Context, rawState string, offset, limit int) ([]ProductDTO, error) {
	params := productDomain.ListParams{Offset: offset, Limit: limit}
	if rawState != "" {
		switch st := productDomain.State(rawState); st {
		case productDomain.StateDraft, productDomain.StateGA, productDomain.StateRetired:
			params.State = &st
		default:
			return nil, apperror.Validation("unknown product state: " + rawState)
		}
	}

	products, err := s.products.List(ctx, params)
	if err != nil {
		return nil, err
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = *toProductDTO(p)
	}
	return dtos, nil
}

func toProductDTO(p *productDomain.Product) *ProductDTO {
	return &ProductDTO{
		ID:          p.ID,
		SKU:         p.SKU,
		Slug:        p.Slug,
		Description: p.Description,
		State:       string(p.State),
	}
}
