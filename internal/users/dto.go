package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// Profile is the customer as returned to clients. Credentials never appear.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DisplayName string     `json:"display_name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewUser carries what Repository.Create persists. Active defaults to true.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       *bool
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ProfileFromModel(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: displayName(u.FirstName, u.LastName, u.Email),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func displayName(first, last, email string) string {
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func (n NewUser) model() *models.User {
	active := true
	if n.Active != nil {
		active = *n.Active
	}
	return &models.User{
		Email:        NormalizeEmail(n.Email),
		PasswordHash: n.PasswordHash,
		FirstName:    strings.TrimSpace(n.FirstName),
		LastName:     strings.TrimSpace(n.LastName),
		IsActive:     active,
	}
}
