package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdto "github.com/angelmondragon/shopfront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/api/responses"
	cartsvc "github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

var testCookies = NewCookies(config.CartConfig{
	CookieName:   "cart_id",
	CookiePath:   "/",
	CookieTTL:    720 * time.Hour,
	CookieSecure: true,
})

type stubCartService struct {
	identities []cartsvc.Identity
	cart       *cartsvc.CartWithItems
	count      int
	directive  cartsvc.TokenDirective
	err        error

	addedProduct  uuid.UUID
	addedQuantity int
	updatedItem   uuid.UUID
	updatedQty    int
	removedItem   uuid.UUID
	cleared       bool
}

func (s *stubCartService) GetCart(_ context.Context, id cartsvc.Identity) (*cartsvc.CartWithItems, error) {
	s.identities = append(s.identities, id)
	return s.cart, s.err
}

func (s *stubCartService) GetOrCreateCart(_ context.Context, id cartsvc.Identity) (*cartsvc.Cart, cartsvc.TokenDirective, error) {
	s.identities = append(s.identities, id)
	return nil, s.directive, s.err
}

func (s *stubCartService) AddItem(_ context.Context, id cartsvc.Identity, productID uuid.UUID, quantity int) (cartsvc.TokenDirective, error) {
	s.identities = append(s.identities, id)
	s.addedProduct, s.addedQuantity = productID, quantity
	return s.directive, s.err
}

func (s *stubCartService) UpdateItemQuantity(_ context.Context, id cartsvc.Identity, itemID uuid.UUID, quantity int) error {
	s.identities = append(s.identities, id)
	s.updatedItem, s.updatedQty = itemID, quantity
	return s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, id cartsvc.Identity, itemID uuid.UUID) error {
	s.identities = append(s.identities, id)
	s.removedItem = itemID
	return s.err
}

func (s *stubCartService) ClearCart(_ context.Context, id cartsvc.Identity) error {
	s.identities = append(s.identities, id)
	s.cleared = true
	return s.err
}

func (s *stubCartService) GetCartCount(_ context.Context, id cartsvc.Identity) (int, error) {
	s.identities = append(s.identities, id)
	return s.count, s.err
}

type stubMerger struct {
	guestCartID uuid.UUID
	userID      uuid.UUID
	result      cartsvc.MergeResult
	err         error
	calls       int
}

func (s *stubMerger) MergeGuestCartIntoUserCart(_ context.Context, guestCartID, userID uuid.UUID) (cartsvc.MergeResult, error) {
	s.calls++
	s.guestCartID, s.userID = guestCartID, userID
	return s.result, s.err
}

func withItemParam(req *http.Request, itemID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("itemId", itemID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeAction(t *testing.T, rec *httptest.ResponseRecorder) responses.ActionEnvelope {
	t.Helper()
	var body responses.ActionEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	return body
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCartFetchWithoutCartReturnsEmptyView(t *testing.T) {
	svc := &stubCartService{}
	rec := httptest.NewRecorder()
	CartFetch(svc, testCookies, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data cartdto.CartView `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ID != nil || len(envelope.Data.Items) != 0 || !envelope.Data.Subtotal.IsZero() {
		t.Fatalf("expected empty view got %+v", envelope.Data)
	}
	if svc.identities[0].Kind != cartsvc.KindAnonymous {
		t.Fatalf("expected anonymous identity got %s", svc.identities[0])
	}
	if cookieNamed(rec, "cart_id") != nil {
		t.Fatal("viewing must not issue a cart cookie")
	}
}

func TestCartFetchUsesGuestCookie(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartWithItems{
		Cart:      cartsvc.Cart{ID: cartID},
		Items:     []cartsvc.CartItem{{ID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("4.25")}},
		ItemCount: 2,
		Subtotal:  decimal.RequireFromString("8.50"),
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: "cart_id", Value: cartID.String()})
	rec := httptest.NewRecorder()
	CartFetch(svc, testCookies, nil).ServeHTTP(rec, req)

	var envelope struct {
		Data cartdto.CartView `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ID == nil || *envelope.Data.ID != cartID {
		t.Fatalf("unexpected cart id %v", envelope.Data.ID)
	}
	if !envelope.Data.Subtotal.Equal(decimal.RequireFromString("8.50")) {
		t.Fatalf("unexpected subtotal %s", envelope.Data.Subtotal)
	}
	if got := svc.identities[0]; !got.IsGuest() || got.GuestCartID != cartID {
		t.Fatalf("expected guest identity got %s", got)
	}
}

func TestCartCountPrefersUserOverCookie(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{count: 5}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/count", nil)
	req.AddCookie(&http.Cookie{Name: "cart_id", Value: uuid.NewString()})
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	CartCount(svc, testCookies, nil).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"count":5`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if got := svc.identities[0]; !got.IsUser() || got.UserID != userID {
		t.Fatalf("expected user identity got %s", got)
	}
}

func TestCartAddItemIssuesGuestCookie(t *testing.T) {
	newCart := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{directive: cartsvc.SetToken(newCart)}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+productID.String()+`"}`))
	rec := httptest.NewRecorder()
	CartAddItem(svc, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.addedProduct != productID || svc.addedQuantity != 1 {
		t.Fatalf("expected default quantity 1 for %s, got %d of %s", productID, svc.addedQuantity, svc.addedProduct)
	}
	body := decodeAction(t, rec)
	if !body.Success || body.Message != "Item added to cart" {
		t.Fatalf("unexpected action %+v", body)
	}

	cookie := cookieNamed(rec, "cart_id")
	if cookie == nil {
		t.Fatal("expected guest cookie")
	}
	if cookie.Value != newCart.String() || !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
	if cookie.Path != "/" || cookie.MaxAge != int((720*time.Hour).Seconds()) {
		t.Fatalf("unexpected cookie scope path=%s maxAge=%d", cookie.Path, cookie.MaxAge)
	}
}

func TestCartAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":0}`))
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9")
	rec := httptest.NewRecorder()
	CartAddItem(svc, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	body := decodeAction(t, rec)
	if body.Success || body.Message == "" || body.Message == "Please check the quantity and try again" {
		t.Fatalf("expected localized failure got %+v", body)
	}
	if len(svc.identities) != 0 {
		t.Fatal("service must not be called for invalid input")
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.Wrap(pkgerrors.CodeNotFound, cartsvc.ErrProductUnavailable, "product not found"), directive: cartsvc.KeepToken()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":2}`))
	rec := httptest.NewRecorder()
	CartAddItem(svc, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if body := decodeAction(t, rec); body.Success || body.Message != "This product is no longer available" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCartAddItemRejectsOversizedQuantity(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":2147483648}`))
	rec := httptest.NewRecorder()
	CartAddItem(svc, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(svc.identities) != 0 {
		t.Fatal("service must not be called for invalid input")
	}
}

func TestCartUpdateItemZeroRemoves(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{}
	req := withItemParam(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+itemID.String(), strings.NewReader(`{"quantity":0}`)), itemID.String())
	rec := httptest.NewRecorder()
	CartUpdateItem(svc, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.updatedItem != itemID || svc.updatedQty != 0 {
		t.Fatalf("unexpected update %s=%d", svc.updatedItem, svc.updatedQty)
	}
	if body := decodeAction(t, rec); body.Message != "Item removed from cart" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestCartUpdateItemRequiresQuantity(t *testing.T) {
	itemID := uuid.New()
	req := withItemParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), itemID.String())
	rec := httptest.NewRecorder()
	CartUpdateItem(&stubCartService{}, testCookies, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCartRemoveItemNotInCart(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")}
	req := withItemParam(httptest.NewRequest(http.MethodDelete, "/", nil), itemID.String())
	rec := httptest.NewRecorder()
	CartRemoveItem(svc, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if body := decodeAction(t, rec); body.Success || body.Message != "Item not in cart" {
		t.Fatalf("unexpected action %+v", body)
	}
}

func TestCartRemoveItemBadID(t *testing.T) {
	req := withItemParam(httptest.NewRequest(http.MethodDelete, "/", nil), "not-a-uuid")
	rec := httptest.NewRecorder()
	svc := &stubCartService{}
	CartRemoveItem(svc, testCookies, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || svc.removedItem != uuid.Nil {
		t.Fatalf("expected 400 without service call, got %d", rec.Code)
	}
}

func TestCartClearPersistenceFailure(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("conn reset"), "clear cart")}
	rec := httptest.NewRecorder()
	CartClear(svc, testCookies, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	body := decodeAction(t, rec)
	if body.Success || strings.Contains(body.Message, "conn reset") {
		t.Fatalf("unexpected action %+v", body)
	}
}

func TestCartMergeRequiresUser(t *testing.T) {
	merger := &stubMerger{}
	rec := httptest.NewRecorder()
	CartMerge(merger, testCookies, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if merger.calls != 0 {
		t.Fatal("merge must not run for guests")
	}
}

func TestCartMergeClearsCookie(t *testing.T) {
	userID, guestID, userCart := uuid.New(), uuid.New(), uuid.New()
	merger := &stubMerger{result: cartsvc.MergeResult{Path: cartsvc.MergeCombine, CartID: userCart, ItemsMerged: 3, Token: cartsvc.ClearToken()}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	req.AddCookie(&http.Cookie{Name: "cart_id", Value: guestID.String()})
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	CartMerge(merger, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if merger.guestCartID != guestID || merger.userID != userID {
		t.Fatalf("unexpected merge args %s -> %s", merger.guestCartID, merger.userID)
	}
	cookie := cookieNamed(rec, "cart_id")
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected cookie cleared got %+v", cookie)
	}

	var body struct {
		Success bool              `json:"success"`
		Data    cartdto.MergeView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.Path != cartsvc.MergeCombine || body.Data.ItemsMerged != 3 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCartMergeWithoutGuestCookieIsNoop(t *testing.T) {
	merger := &stubMerger{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	CartMerge(merger, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || merger.calls != 0 {
		t.Fatalf("expected noop 200, got %d calls=%d", rec.Code, merger.calls)
	}
	if !strings.Contains(rec.Body.String(), `"path":"noop"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCartMergeFailureKeepsCookie(t *testing.T) {
	merger := &stubMerger{err: pkgerrors.New(pkgerrors.CodeInvariant, "user cart vanished")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	req.AddCookie(&http.Cookie{Name: "cart_id", Value: uuid.NewString()})
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	CartMerge(merger, testCookies, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if cookieNamed(rec, "cart_id") != nil {
		t.Fatal("cookie must survive a failed merge")
	}
}
