package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/geocoder89/expensetracker/internal/gcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToolkit mimics the handful of identity REST calls the gateway makes.
type fakeToolkit struct {
	token      string
	disabled   bool
	validSince int64
	down       bool
}

func (f *fakeToolkit) fail(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, code, msg)
}

func (f *fakeToolkit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down {
		f.fail(w, http.StatusServiceUnavailable, "BACKEND_ERROR")
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/v1/projects/" + testProject + "/accounts":
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)

		switch {
		case email == "taken@example.com":
			f.fail(w, http.StatusBadRequest, "EMAIL_EXISTS")
		case email == "bad":
			f.fail(w, http.StatusBadRequest, "INVALID_EMAIL")
		case len(password) < 6:
			f.fail(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"localId": "uid-1", "email": email})
		}

	case "/v1/accounts:signInWithPassword":
		if r.URL.Query().Get("key") != "web-key" {
			f.fail(w, http.StatusBadRequest, "API key not valid. Please pass a valid API key.")
			return
		}
		if body["password"] != "secret123" {
			f.fail(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId": "uid-1", "email": body["email"], "idToken": f.token, "expiresIn": "3600",
		})

	case "/v1/projects/" + testProject + "/accounts:lookup":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{
				"localId":    "uid-1",
				"disabled":   f.disabled,
				"validSince": strconv.FormatInt(f.validSince, 10),
			}},
		})

	default:
		f.fail(w, http.StatusNotFound, "NOT_FOUND")
	}
}

func newFirebaseGateway(t *testing.T, fake *fakeToolkit, checkRevoked bool) (*FirebaseGateway, signer) {
	t.Helper()

	s := newSigner(t, "kid-1")
	keys, _ := keyServer(t, s)

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api := gcloud.NewWithHTTPClient(srv.Client(), srv.URL)
	verifier := NewIDTokenVerifier(testProject, NewKeySource(keys.URL, keys.Client()))

	return NewFirebaseGateway(api, api, verifier, FirebaseConfig{
		ProjectID:    testProject,
		APIKey:       "web-key",
		CheckRevoked: checkRevoked,
	}), s
}

func TestFirebaseGateway_Register(t *testing.T) {
	gw, _ := newFirebaseGateway(t, &fakeToolkit{}, false)
	ctx := context.Background()

	got, err := gw.Register(ctx, identity.RegisterInput{Email: "a@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{SubjectID: "uid-1", Email: "a@example.com"}, got)

	tests := []struct {
		name     string
		in       identity.RegisterInput
		wantCode string
	}{
		{"duplicate", identity.RegisterInput{Email: "taken@example.com", Password: "secret123"}, identity.CodeEmailExists},
		{"invalid email", identity.RegisterInput{Email: "bad", Password: "secret123"}, identity.CodeInvalidEmail},
		{"weak password", identity.RegisterInput{Email: "b@example.com", Password: "123"}, identity.CodeWeakPassword},
		{"missing password", identity.RegisterInput{Email: "b@example.com"}, identity.CodeMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gw.Register(ctx, tt.in)

			var regErr *identity.RegistrationError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, tt.wantCode, regErr.Code)
			assert.NotEmpty(t, regErr.Message)
		})
	}
}

func TestFirebaseGateway_RegisterUpstreamDown(t *testing.T) {
	gw, _ := newFirebaseGateway(t, &fakeToolkit{down: true}, false)

	_, err := gw.Register(context.Background(), identity.RegisterInput{Email: "a@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestFirebaseGateway_SignInAndVerify(t *testing.T) {
	fake := &fakeToolkit{}
	gw, s := newFirebaseGateway(t, fake, false)
	fake.token = s.idToken(t, "uid-1", nil)
	ctx := context.Background()

	sess, err := gw.SignIn(ctx, identity.SignInInput{Email: "uid-1@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), sess.ExpiresIn)

	id, err := gw.VerifyToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", id.SubjectID)

	_, err = gw.SignIn(ctx, identity.SignInInput{Email: "uid-1@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestFirebaseGateway_CheckRevoked(t *testing.T) {
	fake := &fakeToolkit{}
	gw, s := newFirebaseGateway(t, fake, true)
	ctx := context.Background()
	token := s.idToken(t, "uid-1", nil)

	_, err := gw.VerifyToken(ctx, token)
	require.NoError(t, err)

	fake.validSince = time.Now().Unix()
	_, err = gw.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)

	fake.validSince = 0
	fake.disabled = true
	_, err = gw.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)

	fake.disabled = false
	fake.down = true
	_, err = gw.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}
