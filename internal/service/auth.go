// Package service contains application services: authentication, the user
// directory, courses and their card trees.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/course-keeper/internal/crypto"
	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/limiter"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/repository"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// AuthService defines sign-in and token operations.
type AuthService interface {
	// SignIn applies rate limiting and authenticates by email and password.
	SignIn(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// Refresh rotates both tokens given a valid refresh token.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Authenticate validates an access token.
	Authenticate(ctx context.Context, accessToken string) (model.Principal, error)
	// Touch records user activity; failures are logged only.
	Touch(ctx context.Context, userID uuid.UUID)
}

// TokenConfig configures token issuance.
type TokenConfig struct {
	SignKey    []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	hasher pkgcrypto.PasswordHasher
	lim    limiter.Limiter
	cfg    TokenConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	hasher pkgcrypto.PasswordHasher,
	lim limiter.Limiter,
	cfg TokenConfig,
	log *zap.Logger,
) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, hasher: hasher, lim: lim, cfg: cfg, log: log, now: time.Now}
}

type claims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// SignIn authenticates with rate limiting by (email, ip).
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ipHash := limiter.HashIP(ip)

	allowed, retry, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrTooManyAttempts.Withf("too many sign-in attempts, retry in %s", retry.Round(time.Second))
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	ok := false
	if err == nil {
		if ok, err = s.hasher.Verify(password, u.PwdHash); err != nil {
			s.log.Warn("stored password hash unreadable", zap.String("user", u.ID.String()), zap.Error(err))
			ok = false
		}
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrTooManyAttempts
		}
		return model.Tokens{}, model.User{}, errs.ErrInvalidCredentials
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tokens, err := s.issue(ctx, u)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	s.Touch(ctx, u.ID)
	return tokens, *u, nil
}

// Refresh validates the refresh token against the stored digest and rotates both tokens.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	c, err := s.parse(refreshToken, tokenRefresh)
	if err != nil {
		return model.Tokens{}, err
	}
	id, err := uuid.FromString(c.Subject)
	if err != nil {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrInvalidToken
		}
		return model.Tokens{}, err
	}
	if u.RefreshHash == "" || !pkgcrypto.TokenMatches(refreshToken, u.RefreshHash) {
		return model.Tokens{}, errs.ErrInvalidToken.Withf("refresh token was revoked")
	}
	return s.issue(ctx, u)
}

// Authenticate validates an access token and returns the caller.
func (s *AuthServiceImpl) Authenticate(_ context.Context, accessToken string) (model.Principal, error) {
	c, err := s.parse(accessToken, tokenAccess)
	if err != nil {
		return model.Principal{}, err
	}
	id, err := uuid.FromString(c.Subject)
	if err != nil {
		return model.Principal{}, errs.ErrInvalidToken
	}
	role := model.Role(c.Role)
	if !role.Valid() {
		return model.Principal{}, errs.ErrInvalidToken
	}
	return model.Principal{UserID: id, Role: role}, nil
}

// Touch records the time of the user's last request.
func (s *AuthServiceImpl) Touch(ctx context.Context, userID uuid.UUID) {
	if err := s.users.TouchLastSeen(ctx, userID, s.now()); err != nil {
		s.log.Debug("touch last seen", zap.String("user", userID.String()), zap.Error(err))
	}
}

func (s *AuthServiceImpl) issue(ctx context.Context, u *model.User) (model.Tokens, error) {
	now := s.now()
	access, exp, err := s.sign(u, tokenAccess, now, s.cfg.AccessTTL)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, _, err := s.sign(u, tokenRefresh, now, s.cfg.RefreshTTL)
	if err != nil {
		return model.Tokens{}, err
	}
	if err := s.users.SetRefreshHash(ctx, u.ID, pkgcrypto.HashToken(refresh)); err != nil {
		return model.Tokens{}, fmt.Errorf("store refresh token: %w", err)
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// sign creates an HS256 JWT of the given type.
func (s *AuthServiceImpl) sign(u *model.User, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(ttl)
	c := claims{
		Role: string(u.Role),
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    s.cfg.Issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.SignKey)
	return signed, exp, err
}

func (s *AuthServiceImpl) parse(token, typ string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.cfg.SignKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ErrInvalidToken.Withf("token expired")
		}
		return nil, errs.ErrInvalidToken
	}
	if c.Type != typ {
		return nil, errs.ErrInvalidToken.Withf("expected %s token", typ)
	}
	return &c, nil
}
