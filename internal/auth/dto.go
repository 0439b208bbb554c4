package auth

import (
	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a shopper account.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// MergeStatus summarizes what happened to the guest cart during sign-in.
type MergeStatus string

const (
	MergeStatusNone   MergeStatus = "none"
	MergeStatusMerged MergeStatus = "merged"
	MergeStatusFailed MergeStatus = "failed"
)

// CartMergeSummary is reported back to the client after sign-in.
type CartMergeSummary struct {
	Status      MergeStatus    `json:"status"`
	Path        cart.MergePath `json:"path,omitempty"`
	ItemsMerged int            `json:"items_merged"`
}

// AuthResponse is produced by a successful login or registration.
// CartToken tells the transport what to do with the guest cart cookie.
type AuthResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	User         *users.Profile      `json:"user"`
	Cart         CartMergeSummary    `json:"cart"`
	CartToken    cart.TokenDirective `json:"-"`
}

// TokenPair is returned by a refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
