package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/geocoder89/expensetracker/internal/gcloud"
)

const (
	// IdentityToolkitEndpoint is the REST root of the hosted identity service.
	IdentityToolkitEndpoint = "https://identitytoolkit.googleapis.com/"
	// IdentityScope is requested for the service-account client.
	IdentityScope = "https://www.googleapis.com/auth/identitytoolkit"
)

type FirebaseConfig struct {
	ProjectID string
	// APIKey enables password sign-in; without it SignIn is unavailable.
	APIKey string
	// CheckRevoked looks the account up on every verification and rejects
	// disabled users or tokens issued before a revocation.
	CheckRevoked bool
}

// FirebaseGateway talks to the hosted identity service. admin carries
// service-account credentials; public is unauthenticated and only used for
// password sign-in, which is keyed by the web API key instead.
type FirebaseGateway struct {
	admin    *gcloud.Client
	public   *gcloud.Client
	verifier *IDTokenVerifier
	cfg      FirebaseConfig
}

func NewFirebaseGateway(admin, public *gcloud.Client, verifier *IDTokenVerifier, cfg FirebaseConfig) *FirebaseGateway {
	return &FirebaseGateway{admin: admin, public: public, verifier: verifier, cfg: cfg}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	IDToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
}

type lookupRequest struct {
	LocalID []string `json:"localId"`
}

type lookupResponse struct {
	Users []struct {
		LocalID    string `json:"localId"`
		Disabled   bool   `json:"disabled"`
		ValidSince string `json:"validSince"`
	} `json:"users"`
}

func (g *FirebaseGateway) Register(ctx context.Context, in identity.RegisterInput) (identity.Identity, error) {
	if in.Email == "" || in.Password == "" {
		return identity.Identity{}, &identity.RegistrationError{Code: identity.CodeMissingFields, Message: "email and password are required"}
	}

	var out accountResponse

	err := g.admin.Do(ctx, http.MethodPost, "v1/projects/"+url.PathEscape(g.cfg.ProjectID)+"/accounts", nil,
		signUpRequest{Email: in.Email, Password: in.Password, DisplayName: in.DisplayName}, &out)

	if err != nil {
		return identity.Identity{}, registrationError(err)
	}

	email := out.Email
	if email == "" {
		email = in.Email
	}

	return identity.Identity{SubjectID: out.LocalID, Email: email}, nil
}

func (g *FirebaseGateway) SignIn(ctx context.Context, in identity.SignInInput) (identity.Session, error) {
	if g.cfg.APIKey == "" {
		return identity.Session{}, fmt.Errorf("%w: sign-in needs a web API key", identity.ErrUnavailable)
	}

	var out signInResponse

	err := g.public.Do(ctx, http.MethodPost, "v1/accounts:signInWithPassword", url.Values{"key": {g.cfg.APIKey}},
		signInRequest{Email: in.Email, Password: in.Password, ReturnSecureToken: true}, &out)

	if err != nil {
		if gcloud.IsUnavailable(err) {
			return identity.Session{}, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
		}
		return identity.Session{}, fmt.Errorf("%w: %s", identity.ErrInvalidCredential, gcloud.Message(err))
	}

	expiresIn, _ := strconv.ParseInt(out.ExpiresIn, 10, 64)

	return identity.Session{
		Identity:  identity.Identity{SubjectID: out.LocalID, Email: out.Email},
		Token:     out.IDToken,
		ExpiresIn: expiresIn,
	}, nil
}

func (g *FirebaseGateway) VerifyToken(ctx context.Context, token string) (identity.Identity, error) {
	v, err := g.verifier.Verify(ctx, token)

	if err != nil {
		return identity.Identity{}, err
	}

	if !g.cfg.CheckRevoked {
		return v.Identity, nil
	}

	err = g.checkRevoked(ctx, v)

	if err != nil {
		return identity.Identity{}, err
	}

	return v.Identity, nil
}

func (g *FirebaseGateway) checkRevoked(ctx context.Context, v Verified) error {
	var out lookupResponse

	err := g.admin.Do(ctx, http.MethodPost, "v1/projects/"+url.PathEscape(g.cfg.ProjectID)+"/accounts:lookup", nil,
		lookupRequest{LocalID: []string{v.SubjectID}}, &out)

	if err != nil {
		return fmt.Errorf("%w: account lookup: %w", identity.ErrUnavailable, err)
	}

	if len(out.Users) == 0 {
		return fmt.Errorf("%w: account no longer exists", identity.ErrInvalidCredential)
	}

	u := out.Users[0]

	if u.Disabled {
		return fmt.Errorf("%w: account disabled", identity.ErrInvalidCredential)
	}

	validSince, _ := strconv.ParseInt(u.ValidSince, 10, 64)

	if validSince > 0 && v.AuthTime.Unix() < validSince {
		return fmt.Errorf("%w: token revoked", identity.ErrInvalidCredential)
	}

	return nil
}

// registrationError turns a provider refusal into a RegistrationError and
// anything else into ErrUnavailable.
func registrationError(err error) error {
	if gcloud.IsUnavailable(err) {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	msg := gcloud.Message(err)
	code, detail, _ := strings.Cut(msg, ":")
	code = strings.TrimSpace(code)

	switch code {
	case identity.CodeEmailExists, "DUPLICATE_EMAIL":
		return &identity.RegistrationError{Code: identity.CodeEmailExists, Message: "email already in use"}
	case identity.CodeInvalidEmail:
		return &identity.RegistrationError{Code: identity.CodeInvalidEmail, Message: "email address is badly formatted"}
	case identity.CodeWeakPassword:
		detail = strings.TrimSpace(detail)
		if detail == "" {
			detail = "password should be at least 6 characters"
		}
		return &identity.RegistrationError{Code: identity.CodeWeakPassword, Message: detail}
	case "MISSING_EMAIL", "MISSING_PASSWORD":
		return &identity.RegistrationError{Code: identity.CodeMissingFields, Message: "email and password are required"}
	}

	if msg == "" {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	return &identity.RegistrationError{Code: code, Message: msg}
}
