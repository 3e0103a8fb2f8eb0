package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
)

// RecipeLine is one ingredient and the quantity consumed per unit sold.
type RecipeLine struct {
	IngredientID uuid.UUID
	QtyPerUnit   decimal.Decimal
}

// Service exposes the catalog reads the engines depend on: recipe resolution
// and price capture at order time.
type Service interface {
	WithTx(tx *gorm.DB) Service
	// ResolveRecipe returns the ingredient list for a menu item, preferring
	// the size-specific recipe when sizeID is set. An empty result is not an
	// error; the caller treats recipe-less items as skipped.
	ResolveRecipe(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) ([]RecipeLine, error)
	// ResolvePrice returns the current sell price for a menu item or its size
	// variant. Callers freeze this on the line item at order time.
	ResolvePrice(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) ResolveRecipe(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) ([]RecipeLine, error) {
	if sizeID != nil && *sizeID != uuid.Nil {
		links, err := s.repo.FindSizeRecipe(ctx, *sizeID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load size recipe")
		}
		lines := make([]RecipeLine, 0, len(links))
		for _, link := range links {
			lines = append(lines, RecipeLine{IngredientID: link.IngredientID, QtyPerUnit: link.Quantity})
		}
		return lines, nil
	}

	links, err := s.repo.FindItemRecipe(ctx, menuItemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item recipe")
	}
	lines := make([]RecipeLine, 0, len(links))
	for _, link := range links {
		lines = append(lines, RecipeLine{IngredientID: link.IngredientID, QtyPerUnit: link.Quantity})
	}
	return lines, nil
}

func (s *service) ResolvePrice(ctx context.Context, menuItemID uuid.UUID, sizeID *uuid.UUID) (decimal.Decimal, error) {
	if sizeID != nil && *sizeID != uuid.Nil {
		size, err := s.repo.FindMenuItemSize(ctx, *sizeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "size variant not found")
			}
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load size variant")
		}
		if size.MenuItemID != menuItemID {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "size does not belong to menu item")
		}
		return size.Price, nil
	}

	item, err := s.repo.FindMenuItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	return item.Price, nil
}
