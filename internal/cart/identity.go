package cart

import (
	"strings"

	"github.com/google/uuid"
)

// Kind tags which party a cart request acts for.
type Kind string

const (
	KindUser      Kind = "user"
	KindGuest     Kind = "guest"
	KindAnonymous Kind = "anonymous"
)

// Identity addresses a cart. Exactly one of UserID or GuestCartID is set for
// the user and guest kinds; neither is set for anonymous.
type Identity struct {
	Kind        Kind
	UserID      uuid.UUID
	GuestCartID uuid.UUID
}

func UserIdentity(userID uuid.UUID) Identity {
	return Identity{Kind: KindUser, UserID: userID}
}

func GuestIdentity(cartID uuid.UUID) Identity {
	return Identity{Kind: KindGuest, GuestCartID: cartID}
}

func AnonymousIdentity() Identity {
	return Identity{Kind: KindAnonymous}
}

// Resolve maps the authenticated user (if any) and the raw guest token from
// the client into an Identity. An authenticated user always wins over a guest
// token. Tokens that are not cart IDs resolve as anonymous.
func Resolve(userID *uuid.UUID, guestToken string) Identity {
	if userID != nil && *userID != uuid.Nil {
		return UserIdentity(*userID)
	}
	token := strings.TrimSpace(guestToken)
	if token == "" {
		return AnonymousIdentity()
	}
	cartID, err := uuid.Parse(token)
	if err != nil || cartID == uuid.Nil {
		return AnonymousIdentity()
	}
	return GuestIdentity(cartID)
}

func (i Identity) IsUser() bool {
	return i.Kind == KindUser && i.UserID != uuid.Nil
}

func (i Identity) IsGuest() bool {
	return i.Kind == KindGuest && i.GuestCartID != uuid.Nil
}

func (i Identity) String() string {
	switch {
	case i.IsUser():
		return "user:" + i.UserID.String()
	case i.IsGuest():
		return "guest:" + i.GuestCartID.String()
	default:
		return string(KindAnonymous)
	}
}

// TokenAction tells the transport what to do with the client's guest token.
type TokenAction int

const (
	TokenKeep TokenAction = iota
	TokenSet
	TokenClear
)

// TokenDirective is returned by operations that change which guest cart the
// client should carry. The caller persists it; the cart package never touches
// cookies.
type TokenDirective struct {
	Action      TokenAction
	GuestCartID uuid.UUID
}

func KeepToken() TokenDirective {
	return TokenDirective{Action: TokenKeep}
}

func SetToken(cartID uuid.UUID) TokenDirective {
	return TokenDirective{Action: TokenSet, GuestCartID: cartID}
}

func ClearToken() TokenDirective {
	return TokenDirective{Action: TokenClear}
}
