package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	userID := uuid.New()
	guestID := uuid.New()
	nilID := uuid.Nil

	cases := []struct {
		name  string
		user  *uuid.UUID
		token string
		want  Identity
	}{
		{name: "user wins over guest token", user: &userID, token: guestID.String(), want: UserIdentity(userID)},
		{name: "user without token", user: &userID, want: UserIdentity(userID)},
		{name: "guest token", token: guestID.String(), want: GuestIdentity(guestID)},
		{name: "guest token with whitespace", token: "  " + guestID.String() + " ", want: GuestIdentity(guestID)},
		{name: "nothing", want: AnonymousIdentity()},
		{name: "garbage token", token: "not-a-cart", want: AnonymousIdentity()},
		{name: "nil uuid token", token: uuid.Nil.String(), want: AnonymousIdentity()},
		{name: "nil user id falls back to token", user: &nilID, token: guestID.String(), want: GuestIdentity(guestID)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.user, tc.token))
		})
	}
}

func TestIdentityString(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "user:"+id.String(), UserIdentity(id).String())
	assert.Equal(t, "guest:"+id.String(), GuestIdentity(id).String())
	assert.Equal(t, "anonymous", AnonymousIdentity().String())
	assert.False(t, Identity{Kind: KindUser}.IsUser())
}

func TestTokenDirectives(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, TokenKeep, KeepToken().Action)
	assert.Equal(t, TokenClear, ClearToken().Action)
	set := SetToken(id)
	assert.Equal(t, TokenSet, set.Action)
	assert.Equal(t, id, set.GuestCartID)
}
