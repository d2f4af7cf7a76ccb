package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/geocoder89/expensetracker/internal/domain/user"
	"github.com/geocoder89/expensetracker/internal/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const minPasswordLen = 6

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, u user.User) error
}

// LocalGateway is a self-contained identity backend for development and
// tests. It follows the hosted service's rules so clients behave the same
// against either one.
type LocalGateway struct {
	users    UserStore
	tokens   *Manager
	validate *validator.Validate
	now      func() time.Time
}

func NewLocalGateway(users UserStore, tokens *Manager) *LocalGateway {
	return &LocalGateway{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (g *LocalGateway) Register(ctx context.Context, in identity.RegisterInput) (identity.Identity, error) {
	email := strings.TrimSpace(in.Email)

	if email == "" || in.Password == "" {
		return identity.Identity{}, &identity.RegistrationError{Code: identity.CodeMissingFields, Message: "email and password are required"}
	}

	if g.validate.Var(email, "email") != nil {
		return identity.Identity{}, &identity.RegistrationError{Code: identity.CodeInvalidEmail, Message: "email address is badly formatted"}
	}

	if len(in.Password) < minPasswordLen {
		return identity.Identity{}, &identity.RegistrationError{
			Code:    identity.CodeWeakPassword,
			Message: fmt.Sprintf("password should be at least %d characters", minPasswordLen),
		}
	}

	hash, err := security.HashPassword(in.Password)

	if err != nil {
		return identity.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := g.now().UTC()

	u, err := g.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		CreatedAt:    now,
	})

	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			return identity.Identity{}, &identity.RegistrationError{Code: identity.CodeEmailExists, Message: "email already in use"}
		}
		return identity.Identity{}, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	return identity.Identity{SubjectID: u.ID, Email: u.Email}, nil
}

func (g *LocalGateway) SignIn(ctx context.Context, in identity.SignInInput) (identity.Session, error) {
	u, err := g.users.GetByEmail(ctx, strings.TrimSpace(in.Email))

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return identity.Session{}, identity.ErrInvalidCredential
		}
		return identity.Session{}, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	if security.CheckPassword(u.PasswordHash, in.Password) != nil || u.Disabled {
		return identity.Session{}, identity.ErrInvalidCredential
	}

	token, err := g.tokens.GenerateAccessToken(u.ID, u.Email)

	if err != nil {
		return identity.Session{}, fmt.Errorf("sign token: %w", err)
	}

	return identity.Session{
		Identity:  identity.Identity{SubjectID: u.ID, Email: u.Email},
		Token:     token,
		ExpiresIn: int64(g.tokens.TTL().Seconds()),
	}, nil
}

func (g *LocalGateway) VerifyToken(ctx context.Context, token string) (identity.Identity, error) {
	claims, err := g.tokens.VerifyAccessToken(token)

	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", identity.ErrInvalidCredential, err)
	}

	u, err := g.users.GetByID(ctx, claims.Subject)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return identity.Identity{}, fmt.Errorf("%w: account no longer exists", identity.ErrInvalidCredential)
		}
		return identity.Identity{}, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	if u.Disabled {
		return identity.Identity{}, fmt.Errorf("%w: account disabled", identity.ErrInvalidCredential)
	}

	// second granularity, same as the hosted service's validSince
	if !u.ValidSince.IsZero() && claims.IssuedAt.Unix() < u.ValidSince.Unix() {
		return identity.Identity{}, fmt.Errorf("%w: token revoked", identity.ErrInvalidCredential)
	}

	return identity.Identity{SubjectID: u.ID, Email: u.Email}, nil
}

// Revoke invalidates every token issued to subjectID before now.
func (g *LocalGateway) Revoke(ctx context.Context, subjectID string) error {
	u, err := g.users.GetByID(ctx, subjectID)

	if err != nil {
		return err
	}

	u.ValidSince = g.now().UTC()

	return g.users.Update(ctx, u)
}

// SetDisabled blocks or unblocks sign-in and token use for subjectID.
func (g *LocalGateway) SetDisabled(ctx context.Context, subjectID string, disabled bool) error {
	u, err := g.users.GetByID(ctx, subjectID)

	if err != nil {
		return err
	}

	u.Disabled = disabled

	return g.users.Update(ctx, u)
}
