package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/expensetracker/internal/config"
	"github.com/geocoder89/expensetracker/internal/domain/identity"
	"github.com/gin-gonic/gin"
)

const identityCallTimeout = 5 * time.Second

type IdentityGateway interface {
	Register(ctx context.Context, in identity.RegisterInput) (identity.Identity, error)
	SignIn(ctx context.Context, in identity.SignInInput) (identity.Session, error)
	VerifyToken(ctx context.Context, token string) (identity.Identity, error)
}

type AuthHandler struct {
	gateway IdentityGateway
	log     *slog.Logger
}

func NewAuthHandler(gateway IdentityGateway, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{gateway: gateway, log: log}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req identity.RegisterInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), identityCallTimeout)
	defer cancel()

	id, err := h.gateway.Register(cctx, req)

	if err != nil {
		var regErr *identity.RegistrationError

		if errors.As(err, &regErr) {
			RespondError(ctx, http.StatusBadRequest, "registration_failed", regErr.Message, gin.H{"providerCode": regErr.Code})
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "register_failed", "err", err)
		RespondInternal(ctx, "Could not register user")
		return
	}

	ctx.JSON(http.StatusCreated, id)
}

// VerifyToken answers 401 for anything that is not a valid token, including
// a body it cannot read.
func (h *AuthHandler) VerifyToken(ctx *gin.Context) {
	var req identity.VerifyTokenInput

	if err := ctx.ShouldBindJSON(&req); err != nil || req.Token == "" {
		RespondUnauthorized(ctx, "Invalid or expired token")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), identityCallTimeout)
	defer cancel()

	id, err := h.gateway.VerifyToken(cctx, req.Token)

	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) {
			RespondUnauthorized(ctx, "Invalid or expired token")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "verify_token_failed", "err", err)
		RespondInternal(ctx, "Could not verify token")
		return
	}

	ctx.JSON(http.StatusOK, id)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req identity.SignInInput

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), identityCallTimeout)
	defer cancel()

	sess, err := h.gateway.SignIn(cctx, req)

	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredential) {
			RespondUnauthorized(ctx, "Invalid email or password")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "login_failed", "err", err)
		RespondInternal(ctx, "Could not sign in")
		return
	}

	ctx.JSON(http.StatusOK, sess)
}
