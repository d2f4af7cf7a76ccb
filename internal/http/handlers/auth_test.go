package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/geocoder89/expensetracker/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type fakeGateway struct {
	registerFn func(ctx context.Context, in identity.RegisterInput) (identity.Identity, error)
	signInFn   func(ctx context.Context, in identity.SignInInput) (identity.Session, error)
	verifyFn   func(ctx context.Context, token string) (identity.Identity, error)
}

func (f *fakeGateway) Register(ctx context.Context, in identity.RegisterInput) (identity.Identity, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return identity.Identity{SubjectID: "u1", Email: in.Email}, nil
}

func (f *fakeGateway) SignIn(ctx context.Context, in identity.SignInInput) (identity.Session, error) {
	if f.signInFn != nil {
		return f.signInFn(ctx, in)
	}
	return identity.Session{Identity: identity.Identity{SubjectID: "u1", Email: in.Email}, Token: "tok", ExpiresIn: 3600}, nil
}

func (f *fakeGateway) VerifyToken(ctx context.Context, token string) (identity.Identity, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, token)
	}
	return identity.Identity{SubjectID: "u1", Email: "a@x.com"}, nil
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name             string
		body             string
		registerFn       func(ctx context.Context, in identity.RegisterInput) (identity.Identity, error)
		wantStatusCode   int
		wantCode         string
		wantProviderCode string
	}{
		{
			name:           "success",
			body:           `{"email":"a@x.com","password":"secret1"}`,
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "missing password",
			body:           `{"email":"a@x.com"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "invalid_request",
		},
		{
			name: "email taken",
			body: `{"email":"a@x.com","password":"secret1"}`,
			registerFn: func(ctx context.Context, in identity.RegisterInput) (identity.Identity, error) {
				return identity.Identity{}, &identity.RegistrationError{Code: identity.CodeEmailExists, Message: "email already in use"}
			},
			wantStatusCode:   http.StatusBadRequest,
			wantCode:         "registration_failed",
			wantProviderCode: identity.CodeEmailExists,
		},
		{
			name: "wrapped weak password",
			body: `{"email":"a@x.com","password":"abc"}`,
			registerFn: func(ctx context.Context, in identity.RegisterInput) (identity.Identity, error) {
				return identity.Identity{}, fmt.Errorf("register: %w", &identity.RegistrationError{Code: identity.CodeWeakPassword})
			},
			wantStatusCode:   http.StatusBadRequest,
			wantCode:         "registration_failed",
			wantProviderCode: identity.CodeWeakPassword,
		},
		{
			name: "provider unavailable",
			body: `{"email":"a@x.com","password":"secret1"}`,
			registerFn: func(ctx context.Context, in identity.RegisterInput) (identity.Identity, error) {
				return identity.Identity{}, identity.ErrUnavailable
			},
			wantStatusCode: http.StatusInternalServerError,
			wantCode:       "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewAuthHandler(&fakeGateway{registerFn: tt.registerFn}, discardLogger())
			r := setupRouter(http.MethodPost, "/auth/register", "", h.Register)

			w := postJSON(r, "/auth/register", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantCode == "" {
				var got identity.Identity
				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if got.SubjectID != "u1" || got.Email != "a@x.com" {
					t.Fatalf("unexpected identity %+v", got)
				}
				return
			}

			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Fatalf("expected code %q, got %q", tt.wantCode, body.Error.Code)
			}
			if tt.wantProviderCode != "" && body.Error.Details["providerCode"] != tt.wantProviderCode {
				t.Fatalf("expected providerCode %q, got %v", tt.wantProviderCode, body.Error.Details)
			}
		})
	}
}

func TestVerifyTokenHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		verifyFn       func(ctx context.Context, token string) (identity.Identity, error)
		wantStatusCode int
	}{
		{
			name:           "valid",
			body:           `{"token":"good"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "empty token",
			body:           `{"token":""}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unreadable body",
			body:           `{"token":`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "rejected token",
			body: `{"token":"bad"}`,
			verifyFn: func(ctx context.Context, token string) (identity.Identity, error) {
				return identity.Identity{}, fmt.Errorf("%w: expired", identity.ErrInvalidCredential)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "gateway down",
			body: `{"token":"good"}`,
			verifyFn: func(ctx context.Context, token string) (identity.Identity, error) {
				return identity.Identity{}, identity.ErrUnavailable
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewAuthHandler(&fakeGateway{verifyFn: tt.verifyFn}, discardLogger())
			r := setupRouter(http.MethodPost, "/auth/verify-token", "", h.VerifyToken)

			w := postJSON(r, "/auth/verify-token", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	t.Run("success returns a session", func(t *testing.T) {
		h := handlers.NewAuthHandler(&fakeGateway{}, discardLogger())
		r := setupRouter(http.MethodPost, "/auth/login", "", h.Login)

		w := postJSON(r, "/auth/login", `{"email":"a@x.com","password":"secret1"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var sess identity.Session
		if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if sess.Token != "tok" || sess.SubjectID != "u1" || sess.ExpiresIn != 3600 {
			t.Fatalf("unexpected session %+v", sess)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		gw := &fakeGateway{signInFn: func(ctx context.Context, in identity.SignInInput) (identity.Session, error) {
			return identity.Session{}, identity.ErrInvalidCredential
		}}
		h := handlers.NewAuthHandler(gw, discardLogger())
		r := setupRouter(http.MethodPost, "/auth/login", "", h.Login)

		w := postJSON(r, "/auth/login", `{"email":"a@x.com","password":"nope"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("gateway error", func(t *testing.T) {
		gw := &fakeGateway{signInFn: func(ctx context.Context, in identity.SignInInput) (identity.Session, error) {
			return identity.Session{}, errors.New("dial tcp: refused")
		}}
		h := handlers.NewAuthHandler(gw, discardLogger())
		r := setupRouter(http.MethodPost, "/auth/login", "", h.Login)

		w := postJSON(r, "/auth/login", `{"email":"a@x.com","password":"secret1"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("api health message", func(t *testing.T) {
		h := handlers.NewHealthHandler(nil)
		r := setupRouter(http.MethodGet, "/health", "", h.Health)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != http.StatusOK || w.Body.String() != `{"message":"Expense tracker API is running"}` {
			t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("readyz reports store outage", func(t *testing.T) {
		h := handlers.NewHealthHandler(func(ctx context.Context) error { return errors.New("down") })
		r := setupRouter(http.MethodGet, "/readyz", "", h.Readyz)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", w.Code)
		}
	})

	t.Run("readyz ok", func(t *testing.T) {
		h := handlers.NewHealthHandler(func(ctx context.Context) error { return nil })
		r := setupRouter(http.MethodGet, "/readyz", "", h.Readyz)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})
}
