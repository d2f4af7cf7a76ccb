package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/geocoder89/expensetracker/internal/observability"
)

// Gateway is the identity service as the rest of the app sees it.
type Gateway interface {
	Register(ctx context.Context, in identity.RegisterInput) (identity.Identity, error)
	SignIn(ctx context.Context, in identity.SignInInput) (identity.Session, error)
	VerifyToken(ctx context.Context, token string) (identity.Identity, error)
}

// Metered times every gateway call and counts failures by class.
type Metered struct {
	inner Gateway
	prom  *observability.Prom
}

func NewMetered(inner Gateway, prom *observability.Prom) *Metered {
	return &Metered{inner: inner, prom: prom}
}

func (m *Metered) Register(ctx context.Context, in identity.RegisterInput) (out identity.Identity, err error) {
	err = m.prom.ObserveGateway("identity.register", func() error {
		out, err = m.inner.Register(ctx, in)
		return err
	})
	return
}

func (m *Metered) SignIn(ctx context.Context, in identity.SignInInput) (out identity.Session, err error) {
	err = m.prom.ObserveGateway("identity.sign_in", func() error {
		out, err = m.inner.SignIn(ctx, in)
		return err
	})
	return
}

func (m *Metered) VerifyToken(ctx context.Context, token string) (out identity.Identity, err error) {
	err = m.prom.ObserveGateway("identity.verify_token", func() error {
		out, err = m.inner.VerifyToken(ctx, token)
		return err
	})
	return
}

// EnsureUser registers email/password at startup if it is set and does not
// exist yet. An existing account is left alone.
func EnsureUser(ctx context.Context, gw Gateway, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	id, err := gw.Register(ctx, identity.RegisterInput{Email: email, Password: password})

	if err != nil {
		var regErr *identity.RegistrationError

		if errors.As(err, &regErr) && regErr.Code == identity.CodeEmailExists {
			return nil
		}
		return err
	}

	slog.Default().InfoContext(ctx, "seed_user_created", "subject_id", id.SubjectID, "email", id.Email)

	return nil
}
