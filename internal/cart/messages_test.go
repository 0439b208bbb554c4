package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

func TestMatchLanguage(t *testing.T) {
	assert.Equal(t, language.English, MatchLanguage(""))
	assert.Equal(t, language.English, MatchLanguage("en-US,en;q=0.9"))
	assert.Equal(t, language.Spanish, MatchLanguage("es-MX,es;q=0.8,en;q=0.5"))
	assert.Equal(t, language.Arabic, MatchLanguage("ar-SA"))
	assert.Equal(t, language.English, MatchLanguage("ja-JP"))
	assert.Equal(t, language.English, MatchLanguage(";;;garbage"))
}

func TestResultSuccessMessages(t *testing.T) {
	res := Result(language.English, ActionAddItem, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "Item added to cart", res.Message)

	res = Result(language.Spanish, ActionClearCart, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "Carrito vaciado", res.Message)
}

func TestResultFailureMessages(t *testing.T) {
	notFound := pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	res := Result(language.English, ActionRemoveItem, notFound)
	assert.False(t, res.Success)
	assert.Equal(t, "Item not in cart", res.Message)

	invalid := pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	assert.Equal(t, "Please check the quantity and try again", Result(language.English, ActionAddItem, invalid).Message)

	generic := Result(language.English, ActionUpdateItem, errors.New("db down"))
	assert.False(t, generic.Success)
	assert.Equal(t, "We couldn't update your cart. Please try again", generic.Message)
}

func TestResultFallsBackToEnglish(t *testing.T) {
	res := Result(language.Japanese, ActionMerge, nil)
	assert.Equal(t, "Your saved cart has been updated", res.Message)

	assert.Equal(t, "Item added to cart", Result(language.French, ActionAddItem, nil).Message)
	assert.Equal(t, "Item added to cart", Result(language.AmericanEnglish, ActionAddItem, nil).Message)
	assert.Equal(t, "Carrito vaciado", Result(language.MustParse("es-MX"), ActionClearCart, nil).Message)
}

func TestResultUnavailableProduct(t *testing.T) {
	err := pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrProductUnavailable, "product not found")
	res := Result(language.English, ActionAddItem, err)
	assert.False(t, res.Success)
	assert.Equal(t, "This product is no longer available", res.Message)
}
