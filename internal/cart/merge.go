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

// MergePath names the branch a merge took.
type MergePath string

const (
	// MergeNoop: no guest cart, an empty guest cart, or one already merged.
	MergeNoop MergePath = "noop"
	// MergeReassign: the user had no cart, so the guest cart became theirs.
	MergeReassign MergePath = "reassign"
	// MergeCombine: guest lines were folded into the user's existing cart.
	MergeCombine MergePath = "combine"
)

const reassignSavepoint = "cart_reassign"

// MergeResult describes a completed merge. Token is always a clear directive
// so the client stops presenting the guest cart ID.
type MergeResult struct {
	Path        MergePath
	CartID      uuid.UUID
	ItemsMerged int
	Token       TokenDirective
}

// Merger reconciles a guest cart into a user's cart at sign-in.
type Merger interface {
	MergeGuestCartIntoUserCart(ctx context.Context, guestCartID, userID uuid.UUID) (MergeResult, error)
}

// MergerParams wires the merge engine.
type MergerParams struct {
	Repo    CartRepository
	Tx      txRunner
	Cache   CountCache
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
}

type merger struct {
	repo    CartRepository
	tx      txRunner
	cache   CountCache
	logg    *logger.Logger
	metrics *metrics.CartMetrics
}

// NewMerger builds the merge engine. Cache and Metrics are optional.
func NewMerger(params MergerParams) (Merger, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &merger{
		repo:    params.Repo,
		tx:      params.Tx,
		cache:   params.Cache,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// userCartState is the state the merge branches on once a non-empty guest
// cart has been found.
type userCartState int

const (
	noExistingUserCart userCartState = iota
	existingUserCart
)

func (m *merger) MergeGuestCartIntoUserCart(ctx context.Context, guestCartID, userID uuid.UUID) (MergeResult, error) {
	if guestCartID == uuid.Nil {
		return MergeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "guest cart id is required")
	}
	if userID == uuid.Nil {
		return MergeResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	ctx = m.logg.WithGuestCartID(m.logg.WithUserID(ctx, userID.String()), guestCartID.String())

	result := MergeResult{Path: MergeNoop}
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		guest, err := repo.FindGuest(ctx, guestCartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guest cart")
		}
		if len(guest.Items) == 0 {
			return nil
		}

		state := existingUserCart
		userCart, err := repo.FindByUser(ctx, userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user cart")
			}
			state = noExistingUserCart
		}

		switch state {
		case noExistingUserCart:
			merged, err := m.reassign(ctx, tx, repo, guest, userID)
			if err != nil {
				return err
			}
			result = merged
		case existingUserCart:
			merged, err := m.combine(ctx, repo, guest, userCart)
			if err != nil {
				return err
			}
			result = merged
		}
		return nil
	})
	if err != nil {
		m.metrics.IncMerge("failed")
		m.logg.Error(ctx, "guest cart merge failed", err)
		if pkgerrors.As(err) != nil {
			return MergeResult{}, err
		}
		return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge guest cart")
	}

	result.Token = ClearToken()
	m.metrics.IncMerge(string(result.Path))
	if result.Path != MergeNoop {
		m.invalidate(ctx, guestCartID)
		m.invalidate(ctx, result.CartID)
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"merge_path":   string(result.Path),
		"items_merged": result.ItemsMerged,
	}), "guest cart merge complete")
	return result, nil
}

// reassign hands the guest cart to the user. If another request created the
// user's cart in the meantime the unique index on user_id rejects the update
// and the merge falls through to combine.
func (m *merger) reassign(ctx context.Context, tx *gorm.DB, repo CartRepository, guest *models.Cart, userID uuid.UUID) (MergeResult, error) {
	if err := tx.SavePoint(reassignSavepoint).Error; err != nil {
		return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create savepoint")
	}

	ok, err := repo.AssignUser(ctx, guest.ID, userID)
	if err != nil {
		if !db.IsUniqueViolation(err, "") {
			return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reassign guest cart")
		}
		if rbErr := tx.RollbackTo(reassignSavepoint).Error; rbErr != nil {
			return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, rbErr, "rollback to savepoint")
		}
		userCart, findErr := repo.FindByUser(ctx, userID)
		if findErr != nil {
			return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load user cart")
		}
		return m.combine(ctx, repo, guest, userCart)
	}
	if !ok {
		return MergeResult{Path: MergeNoop}, nil
	}
	return MergeResult{Path: MergeReassign, CartID: guest.ID, ItemsMerged: len(guest.Items)}, nil
}

// combine folds every guest line into userCart, summing quantities per
// product, and deletes the guest cart. Deleting first makes a concurrent
// duplicate merge observe zero rows and back out.
func (m *merger) combine(ctx context.Context, repo CartRepository, guest, userCart *models.Cart) (MergeResult, error) {
	if userCart == nil {
		return MergeResult{}, pkgerrors.New(pkgerrors.CodeInvariant, "user cart missing after lookup")
	}

	deleted, err := repo.DeleteGuestCart(ctx, guest.ID)
	if err != nil {
		return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest cart")
	}
	if !deleted {
		return MergeResult{Path: MergeNoop}, nil
	}

	for _, item := range guest.Items {
		if err := repo.UpsertItem(ctx, userCart.ID, item.ProductID, item.Quantity); err != nil {
			return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart item")
		}
	}
	if err := repo.Touch(ctx, userCart.ID); err != nil {
		return MergeResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch user cart")
	}
	return MergeResult{Path: MergeCombine, CartID: userCart.ID, ItemsMerged: len(guest.Items)}, nil
}

func (m *merger) invalidate(ctx context.Context, cartID uuid.UUID) {
	if m.cache == nil || cartID == uuid.Nil {
		return
	}
	if err := m.cache.Invalidate(ctx, cartID); err != nil {
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "cart count invalidation failed")
	}
}
