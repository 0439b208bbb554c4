package cart

import (
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

// Action names a user-facing cart operation.
type Action string

const (
	ActionAddItem    Action = "add_item"
	ActionUpdateItem Action = "update_item"
	ActionRemoveItem Action = "remove_item"
	ActionClearCart  Action = "clear_cart"
	ActionMerge      Action = "merge"
)

// ActionResult is the uniform outcome returned to storefront clients for
// cart mutations.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	msgAdded        = "cart.added"
	msgUpdated      = "cart.updated"
	msgRemoved      = "cart.removed"
	msgCleared      = "cart.cleared"
	msgMerged       = "cart.merged"
	msgItemNotFound = "cart.item_not_found"
	msgUnavailable  = "cart.product_unavailable"
	msgInvalidInput = "cart.invalid_input"
	msgFailed       = "cart.failed"
)

var (
	supportedLanguages = []language.Tag{language.English, language.Spanish, language.Arabic}
	languageMatcher    = language.NewMatcher(supportedLanguages)
	messages           = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	entries := map[language.Tag]map[string]string{
		language.English: {
			msgAdded:        "Item added to cart",
			msgUpdated:      "Cart updated",
			msgRemoved:      "Item removed from cart",
			msgCleared:      "Cart cleared",
			msgMerged:       "Your saved cart has been updated",
			msgItemNotFound: "Item not in cart",
			msgUnavailable:  "This product is no longer available",
			msgInvalidInput: "Please check the quantity and try again",
			msgFailed:       "We couldn't update your cart. Please try again",
		},
		language.Spanish: {
			msgAdded:        "Producto añadido al carrito",
			msgUpdated:      "Carrito actualizado",
			msgRemoved:      "Producto eliminado del carrito",
			msgCleared:      "Carrito vaciado",
			msgMerged:       "Tu carrito guardado se ha actualizado",
			msgItemNotFound: "El producto no está en el carrito",
			msgUnavailable:  "Este producto ya no está disponible",
			msgInvalidInput: "Revisa la cantidad e inténtalo de nuevo",
			msgFailed:       "No pudimos actualizar tu carrito. Inténtalo de nuevo",
		},
		language.Arabic: {
			msgAdded:        "تمت إضافة المنتج إلى السلة",
			msgUpdated:      "تم تحديث السلة",
			msgRemoved:      "تمت إزالة المنتج من السلة",
			msgCleared:      "تم إفراغ السلة",
			msgMerged:       "تم تحديث سلتك المحفوظة",
			msgItemNotFound: "المنتج غير موجود في السلة",
			msgUnavailable:  "هذا المنتج لم يعد متوفرا",
			msgInvalidInput: "يرجى التحقق من الكمية والمحاولة مرة أخرى",
			msgFailed:       "تعذر تحديث سلتك. يرجى المحاولة مرة أخرى",
		},
	}
	for tag, strs := range entries {
		for key, msg := range strs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// MatchLanguage picks the supported language closest to an Accept-Language
// header value, defaulting to English.
func MatchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	return supported(tags...)
}

func supported(tags ...language.Tag) language.Tag {
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supportedLanguages[idx]
}

// Result converts the outcome of action into a localized ActionResult. Tags
// outside the catalog render in English.
func Result(tag language.Tag, action Action, err error) ActionResult {
	p := message.NewPrinter(supported(tag), message.Catalog(messages))
	if err == nil {
		return ActionResult{Success: true, Message: p.Sprintf(successKey(action))}
	}
	return ActionResult{Success: false, Message: p.Sprintf(failureKey(err))}
}

func successKey(action Action) string {
	switch action {
	case ActionAddItem:
		return msgAdded
	case ActionRemoveItem:
		return msgRemoved
	case ActionClearCart:
		return msgCleared
	case ActionMerge:
		return msgMerged
	default:
		return msgUpdated
	}
}

func failureKey(err error) string {
	switch {
	case errors.Is(err, ErrProductUnavailable):
		return msgUnavailable
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return msgItemNotFound
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return msgInvalidInput
	default:
		return msgFailed
	}
}
