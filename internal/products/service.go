package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/pkg/db"
	"github.com/avalencia/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
	"github.com/avalencia/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines catalog operations used by the controllers.
type Service interface {
	List(ctx context.Context, params pagination.Params, includeInactive bool, search string) (*ProductListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductResponse, error)
	Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetStock(ctx context.Context, id uuid.UUID, req SetStockRequest) (*ProductResponse, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService constructs the catalog service with the provided dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, includeInactive bool, search string) (*ProductListResponse, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListQuery{
		Limit:      params.Limit,
		Cursor:     cursor,
		ActiveOnly: !includeInactive,
		Search:     strings.TrimSpace(search),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	resp := ProductListResponse{Products: make([]ProductResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Products = append(resp.Products, NewProductResponse(row))
	}
	if next != nil {
		encoded := pagination.EncodeCursor(*next)
		resp.NextCursor = &encoded
	}
	return &resp, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	resp := NewProductResponse(*product)
	return &resp, nil
}

func (s *service) Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	if err := validatePricing(req.PriceCents, req.SalePriceCents); err != nil {
		return nil, err
	}
	if req.StockQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}

	product := models.Product{
		SKU:            strings.TrimSpace(req.SKU),
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		SalePriceCents: req.SalePriceCents,
		IsActive:       true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateProduct(ctx, &product); err != nil {
			if db.IsUniqueViolation(err, "ux_products_sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		item := models.InventoryItem{ProductID: product.ID, AvailableQty: req.StockQty}
		if err := repo.UpsertInventory(ctx, &item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
		}
		product.Inventory = &item
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := NewProductResponse(product)
	return &resp, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	if req.Title != nil {
		product.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.SalePriceCents != nil {
		product.SalePriceCents = req.SalePriceCents
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := validatePricing(product.PriceCents, product.SalePriceCents); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	resp := NewProductResponse(*product)
	return &resp, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) SetStock(ctx context.Context, id uuid.UUID, req SetStockRequest) (*ProductResponse, error) {
	if req.AvailableQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	item := models.InventoryItem{ProductID: id, AvailableQty: req.AvailableQty}
	if product.Inventory != nil {
		item.ReservedQty = product.Inventory.ReservedQty
	}
	if err := s.repo.UpsertInventory(ctx, &item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory")
	}
	product.Inventory = &item

	resp := NewProductResponse(*product)
	return &resp, nil
}

func validatePricing(priceCents int, salePriceCents *int) error {
	if priceCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if salePriceCents != nil {
		if *salePriceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
		}
		if *salePriceCents > priceCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale price cannot exceed list price")
		}
	}
	return nil
}
