package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
)

const (
	opGetCart    = "get_cart"
	opAddItem    = "add_item"
	opUpdateItem = "update_item"
	opRemoveItem = "remove_item"
	opClearCart  = "clear_cart"
	opCount      = "count"
)

// Service exposes the cart operations available to the storefront.
type Service interface {
	GetCart(ctx context.Context, id Identity) (*CartWithItems, error)
	GetOrCreateCart(ctx context.Context, id Identity) (*Cart, TokenDirective, error)
	AddItem(ctx context.Context, id Identity, productID uuid.UUID, quantity int) (TokenDirective, error)
	UpdateItemQuantity(ctx context.Context, id Identity, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, id Identity, itemID uuid.UUID) error
	ClearCart(ctx context.Context, id Identity) error
	GetCartCount(ctx context.Context, id Identity) (int, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo    CartRepository
	Cache   CountCache
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
}

type service struct {
	repo    CartRepository
	cache   CountCache
	logg    *logger.Logger
	metrics *metrics.CartMetrics
}

// NewService builds a cart service. Cache and Metrics are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		cache:   params.Cache,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) GetCart(ctx context.Context, id Identity) (out *CartWithItems, err error) {
	defer func() { s.metrics.ObserveOperation(opGetCart, err) }()

	row, err := s.lookup(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	full, err := s.repo.FindWithItems(ctx, row.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
	}
	return withItemsFromModel(full), nil
}

func (s *service) GetOrCreateCart(ctx context.Context, id Identity) (*Cart, TokenDirective, error) {
	row, directive, err := s.getOrCreate(ctx, id)
	if err != nil {
		return nil, directive, err
	}
	out := cartFromModel(row)
	return &out, directive, nil
}

func (s *service) AddItem(ctx context.Context, id Identity, productID uuid.UUID, quantity int) (directive TokenDirective, err error) {
	defer func() { s.metrics.ObserveOperation(opAddItem, err) }()

	if productID == uuid.Nil {
		return KeepToken(), pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity <= 0 {
		return KeepToken(), pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if quantity > MaxItemQuantity {
		return KeepToken(), quantityTooLarge()
	}

	row, directive, err := s.getOrCreate(ctx, id)
	if err != nil {
		return directive, err
	}
	ctx = s.logg.WithCartID(ctx, row.ID.String())

	if err := s.repo.UpsertItem(ctx, row.ID, productID, quantity); err != nil {
		if db.IsForeignKeyViolation(err) {
			return directive, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrProductUnavailable, "product not found")
		}
		return directive, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	s.afterMutation(ctx, row)
	return directive, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, id Identity, itemID uuid.UUID, quantity int) (err error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id, itemID)
	}
	if quantity > MaxItemQuantity {
		return quantityTooLarge()
	}
	defer func() { s.metrics.ObserveOperation(opUpdateItem, err) }()

	row, err := s.requireCart(ctx, id)
	if err != nil {
		return err
	}
	ctx = s.logg.WithCartID(ctx, row.ID.String())

	ok, err := s.repo.SetItemQuantity(ctx, row.ID, itemID, quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	if !ok {
		return itemNotFound()
	}
	s.afterMutation(ctx, row)
	return nil
}

func (s *service) RemoveItem(ctx context.Context, id Identity, itemID uuid.UUID) (err error) {
	defer func() { s.metrics.ObserveOperation(opRemoveItem, err) }()

	row, err := s.requireCart(ctx, id)
	if err != nil {
		return err
	}
	ctx = s.logg.WithCartID(ctx, row.ID.String())

	ok, err := s.repo.DeleteItem(ctx, row.ID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !ok {
		return itemNotFound()
	}
	s.afterMutation(ctx, row)
	return nil
}

func (s *service) ClearCart(ctx context.Context, id Identity) (err error) {
	defer func() { s.metrics.ObserveOperation(opClearCart, err) }()

	row, err := s.lookup(ctx, id)
	if err != nil || row == nil {
		return err
	}
	ctx = s.logg.WithCartID(ctx, row.ID.String())

	if _, err := s.repo.DeleteItems(ctx, row.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	s.afterMutation(ctx, row)
	return nil
}

func (s *service) GetCartCount(ctx context.Context, id Identity) (count int, err error) {
	defer func() { s.metrics.ObserveOperation(opCount, err) }()

	row, err := s.lookup(ctx, id)
	if err != nil || row == nil {
		return 0, err
	}
	ctx = s.logg.WithCartID(ctx, row.ID.String())

	if s.cache != nil {
		cached, ok, cacheErr := s.cache.Get(ctx, row.ID)
		if cacheErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", cacheErr.Error()), "cart count cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	count, err = s.repo.SumQuantity(ctx, row.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cart items")
	}
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, row.ID, count); cacheErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", cacheErr.Error()), "cart count cache write failed")
		}
	}
	return count, nil
}

// lookup returns the cart addressed by id, or nil when there is none.
func (s *service) lookup(ctx context.Context, id Identity) (*models.Cart, error) {
	var (
		row *models.Cart
		err error
	)
	switch {
	case id.IsUser():
		row, err = s.repo.FindByUser(ctx, id.UserID)
	case id.IsGuest():
		row, err = s.repo.FindGuest(ctx, id.GuestCartID)
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return row, nil
}

func (s *service) requireCart(ctx context.Context, id Identity) (*models.Cart, error) {
	row, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, itemNotFound()
	}
	return row, nil
}

func (s *service) getOrCreate(ctx context.Context, id Identity) (*models.Cart, TokenDirective, error) {
	row, err := s.lookup(ctx, id)
	if err != nil {
		return nil, KeepToken(), err
	}
	if row != nil {
		return row, KeepToken(), nil
	}

	if id.IsUser() {
		userID := id.UserID
		created, err := s.repo.Create(ctx, &models.Cart{UserID: &userID})
		if err == nil {
			return created, KeepToken(), nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, KeepToken(), pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user cart")
		}
		// lost a create race with another request for the same user
		existing, findErr := s.repo.FindByUser(ctx, userID)
		if findErr != nil {
			return nil, KeepToken(), pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load user cart")
		}
		return existing, KeepToken(), nil
	}

	created, err := s.repo.Create(ctx, &models.Cart{})
	if err != nil {
		return nil, KeepToken(), pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create guest cart")
	}
	s.logg.Info(s.logg.WithGuestCartID(ctx, created.ID.String()), "guest cart created")
	return created, SetToken(created.ID), nil
}

// afterMutation refreshes the cart's activity timestamp and drops the cached
// count. Failures are logged; the mutation itself already committed.
func (s *service) afterMutation(ctx context.Context, row *models.Cart) {
	if err := s.repo.Touch(ctx, row.ID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart touch failed")
	}
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, row.ID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart count invalidation failed")
	}
}

func quantityTooLarge() error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", MaxItemQuantity)
}

func itemNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
}
