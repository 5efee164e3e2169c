package orders

import (
	"context"
	"strings"

	"github.com/craftandcart/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/craftandcart/shopfront-backend/pkg/errors"
)

// Service exposes order lookups to the API layer.
type Service interface {
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByCheckoutToken(ctx context.Context, token string) (*models.Order, error)
}

type service struct {
	repo Repository
}

// NewService wires an orders service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_number": orderNumber})
	}
	return order, nil
}

func (s *service) GetByCheckoutToken(ctx context.Context, token string) (*models.Order, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout token is required")
	}
	order, err := s.repo.FindByCheckoutToken(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"token": token})
	}
	return order, nil
}
