package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/expensetracker/internal/actorctx"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (identity.Identity, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	log      *slog.Logger
}

func NewAuthMiddleware(verifier TokenVerifier, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{verifier: verifier, log: log}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))

		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		id, err := m.verifier.VerifyToken(c.Request.Context(), raw)

		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredential) {
				abortError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			m.log.ErrorContext(c.Request.Context(), "token_verification_failed", "err", err)
			abortError(c, http.StatusInternalServerError, "internal_error", "Could not verify token")
			return
		}

		c.Set(CtxSubjectID, id.SubjectID)
		c.Set(CtxEmail, id.Email)
		c.Request = c.Request.WithContext(actorctx.WithSubjectID(c.Request.Context(), id.SubjectID))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")

	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)

	return raw, raw != ""
}

func SubjectIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxSubjectID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
