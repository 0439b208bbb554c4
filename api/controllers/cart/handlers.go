package cart

import (
	"context"
	"net/http"

	cartdto "github.com/angelmondragon/shopfront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/api/responses"
	"github.com/angelmondragon/shopfront-backend/api/validators"
	cartsvc "github.com/angelmondragon/shopfront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// CartFetch returns the shopper's cart with items and subtotal. A shopper
// without a cart gets an empty view; no cart is created.
func CartFetch(svc cartsvc.Service, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		record, err := svc.GetCart(r.Context(), cookies.Identity(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartdto.NewCartView(record))
	}
}

// CartCount returns the total quantity across the shopper's cart lines.
func CartCount(svc cartsvc.Service, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		count, err := svc.GetCartCount(r.Context(), cookies.Identity(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartdto.CountView{Count: count})
	}
}

// CartAddItem adds a product, creating the cart (and guest cookie) on first use.
func CartAddItem(svc cartsvc.Service, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeAction(r, w, logg, cartsvc.ActionAddItem, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var body cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeAction(r, w, logg, cartsvc.ActionAddItem, err)
			return
		}
		quantity := 1
		if body.Quantity != nil {
			quantity = *body.Quantity
		}

		directive, err := svc.AddItem(r.Context(), cookies.Identity(r), body.ProductID, quantity)
		cookies.Apply(w, directive)
		writeAction(r, w, logg, cartsvc.ActionAddItem, err)
	}
}

// CartUpdateItem sets a line's quantity; zero or less removes it.
func CartUpdateItem(svc cartsvc.Service, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeAction(r, w, logg, cartsvc.ActionUpdateItem, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			writeAction(r, w, logg, cartsvc.ActionUpdateItem, err)
			return
		}

		var body cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeAction(r, w, logg, cartsvc.ActionUpdateItem, err)
			return
		}

		action := cartsvc.ActionUpdateItem
		if *body.Quantity <= 0 {
			action = cartsvc.ActionRemoveItem
		}
		err = svc.UpdateItemQuantity(r.Context(), cookies.Identity(r), itemID, *body.Quantity)
		writeAction(r, w, logg, action, err)
	}
}

// CartRemoveItem deletes one line from the shopper's cart.
func CartRemoveItem(svc cartsvc.Service, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeAction(r, w, logg, cartsvc.ActionRemoveItem, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemId")
		if err != nil {
			writeAction(r, w, logg, cartsvc.ActionRemoveItem, err)
			return
		}

		err = svc.RemoveItem(r.Context(), cookies.Identity(r), itemID)
		writeAction(r, w, logg, cartsvc.ActionRemoveItem, err)
	}
}

// CartClear empties the cart but keeps it.
func CartClear(svc cartsvc.Service, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeAction(r, w, logg, cartsvc.ActionClearCart, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		err := svc.ClearCart(r.Context(), cookies.Identity(r))
		writeAction(r, w, logg, cartsvc.ActionClearCart, err)
	}
}

// CartMerge folds the guest cart named by the cookie into the signed-in
// user's cart. Requires authentication.
func CartMerge(merger cartsvc.Merger, cookies Cookies, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if merger == nil {
			writeAction(r, w, logg, cartsvc.ActionMerge, pkgerrors.New(pkgerrors.CodeInternal, "cart merge unavailable"))
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		token := cookies.Token(r)
		guest := cartsvc.Resolve(nil, token)
		if !guest.IsGuest() {
			if token != "" {
				cookies.Apply(w, cartsvc.ClearToken())
			}
			writeActionData(r, w, logg, cartsvc.ActionMerge, nil, cartdto.MergeView{Path: cartsvc.MergeNoop})
			return
		}

		result, err := merger.MergeGuestCartIntoUserCart(r.Context(), guest.GuestCartID, *userID)
		if err != nil {
			writeAction(r, w, logg, cartsvc.ActionMerge, err)
			return
		}
		cookies.Apply(w, result.Token)
		writeActionData(r, w, logg, cartsvc.ActionMerge, nil, cartdto.NewMergeView(result))
	}
}

func writeAction(r *http.Request, w http.ResponseWriter, logg *logger.Logger, action cartsvc.Action, err error) {
	writeActionData(r, w, logg, action, err, nil)
}

func writeActionData(r *http.Request, w http.ResponseWriter, logg *logger.Logger, action cartsvc.Action, err error, data any) {
	tag := cartsvc.MatchLanguage(r.Header.Get("Accept-Language"))
	result := cartsvc.Result(tag, action, err)
	responses.WriteAction(withAction(r.Context(), logg, action), logg, w, err, responses.ActionEnvelope{
		Success: result.Success,
		Message: result.Message,
		Data:    data,
	})
}

func withAction(ctx context.Context, logg *logger.Logger, action cartsvc.Action) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithField(ctx, "cart_action", string(action))
}
