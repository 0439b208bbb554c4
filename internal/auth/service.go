package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller. guestToken is
// the raw guest cart cookie, if any; a guest cart it names is merged into the
// user's cart once credentials check out.
type Service interface {
	Register(ctx context.Context, req RegisterRequest, guestToken string) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest, guestToken string) (*AuthResponse, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

type service struct {
	users   userRepository
	session sessionManager
	merger  cart.Merger
	jwtCfg  config.JWTConfig
	hasher  *security.Hasher
	logg    *logger.Logger
	now     func() time.Time
}

type userRepository interface {
	Create(ctx context.Context, dto users.NewUser) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID string, userID uuid.UUID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Merger         cart.Merger
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Merger == nil {
		return nil, fmt.Errorf("cart merger is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:   params.UserRepo,
		session: params.SessionManager,
		merger:  params.Merger,
		jwtCfg:  params.JWTConfig,
		hasher:  security.NewHasher(params.PasswordConfig),
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest, guestToken string) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	s.upgradePasswordHash(ctx, user, req.Password)

	return s.signIn(ctx, user, now, guestToken)
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := s.sessionClaims(accessToken)
	if err != nil {
		return nil, err
	}

	newAccessID, newRefreshToken, err := s.session.Rotate(ctx, claims.ID, claims.UserID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	signed, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenPair{AccessToken: signed, RefreshToken: newRefreshToken}, nil
}

func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.sessionClaims(accessToken)
	if err != nil {
		return err
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}
	return nil
}

// sessionClaims accepts expired access tokens so a client can still refresh
// or log out after the short-lived token lapses.
func (s *service) sessionClaims(accessToken string) (*pkgAuth.AccessTokenClaims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, users.NormalizeEmail(input))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// upgradePasswordHash re-hashes with the current cost after a successful
// login. Failures only cost a retry on the next login.
func (s *service) upgradePasswordHash(ctx context.Context, user *models.User, password string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "password rehash failed")
		return
	}
	user.PasswordHash = hash
	s.logg.Info(ctx, "password hash upgraded")
}

// signIn issues the token pair and then reconciles any guest cart.
func (s *service) signIn(ctx context.Context, user *models.User, now time.Time, guestToken string) (*AuthResponse, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}

	summary, directive := s.mergeGuestCart(ctx, user.ID, guestToken)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.ProfileFromModel(user),
		Cart:         summary,
		CartToken:    directive,
	}, nil
}

// mergeGuestCart never fails the sign-in. On a merge error the guest token is
// kept so the merge can run again on the next sign-in or via the merge endpoint.
func (s *service) mergeGuestCart(ctx context.Context, userID uuid.UUID, guestToken string) (CartMergeSummary, cart.TokenDirective) {
	identity := cart.Resolve(nil, guestToken)
	if !identity.IsGuest() {
		return CartMergeSummary{Status: MergeStatusNone}, cart.KeepToken()
	}

	result, err := s.merger.MergeGuestCartIntoUserCart(ctx, identity.GuestCartID, userID)
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "guest cart merge at sign-in failed", err)
		return CartMergeSummary{Status: MergeStatusFailed}, cart.KeepToken()
	}

	status := MergeStatusMerged
	if result.Path == cart.MergeNoop {
		status = MergeStatusNone
	}
	return CartMergeSummary{
		Status:      status,
		Path:        result.Path,
		ItemsMerged: result.ItemsMerged,
	}, result.Token
}
