package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-complaint-auth/internal/api"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

var _ Handler = (*AuthHandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	ChangePassword(w http.ResponseWriter, r *http.Request)
	VerifyEmail(w http.ResponseWriter, r *http.Request)
	VerifyEmailLink(w http.ResponseWriter, r *http.Request)
	ResendVerification(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
}

type AuthHandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandlerImpl(authService AuthService, logger *slog.Logger) *AuthHandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create AuthHandlerImpl with nil logger!")
	}
	return &AuthHandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// decode reads and validates the body. It writes the error response itself
// and reports whether the handler may continue.
func (h *AuthHandlerImpl) decode(w http.ResponseWriter, r *http.Request, l *slog.Logger, dst interface{}) bool {
	if err := api.DecodeJSONBody(w, r, dst); err != nil {
		l.WarnContext(r.Context(), "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return false
	}
	if err := api.ValidateStruct(dst); err != nil {
		var verr *api.ValidationError
		if errors.As(err, &verr) {
			l.InfoContext(r.Context(), "Request validation failed", slog.Any("fields", verr.Fields))
			api.ValidationErrorResponse(w, r, verr)
			return false
		}
		l.ErrorContext(r.Context(), "Validator failure", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid request")
		return false
	}
	return true
}

func (h *AuthHandlerImpl) fail(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
	} else {
		l.InfoContext(r.Context(), "Request rejected", slog.Int("status", status), slog.String("reason", msg))
	}
	api.ErrorResponse(w, r, status, msg)
}

// Register godoc
// @Summary      Register
// @Description  Creates a pending account and sends a verification code. No tokens are issued.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RegisterRequest true "Registration details"
// @Success      201 {object} RegisterResult
// @Failure      400 {object} api.ErrorBody "Validation failed or invalid geography"
// @Failure      409 {object} api.ErrorBody "Phone or email already registered"
// @Failure      500 {object} api.ErrorBody
// @Router       /auth/register [post]
func (h *AuthHandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Register"))

	var req RegisterRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, res)
}

// Login godoc
// @Summary      Login
// @Description  Authenticates with email or phone and password and returns an access/refresh token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Credentials"
// @Success      200 {object} TokenResponse
// @Failure      400 {object} api.ErrorBody
// @Failure      401 {object} api.ErrorBody "Invalid credentials"
// @Failure      403 {object} api.ErrorBody "Suspended, unverified or portal not allowed"
// @Router       /auth/login [post]
func (h *AuthHandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Login"))

	var req LoginRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	pair, err := h.authService.Login(r.Context(), NewIdentifier(req.Email, req.Phone), req.Password, req.Portal)
	if err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, TokenResponse{Success: true, TokenPair: *pair})
}

// Refresh godoc
// @Summary      Refresh session
// @Description  Rotates the refresh token and issues a new token pair. A refresh token can be used once.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RefreshTokenRequest true "Refresh token"
// @Success      200 {object} TokenResponse
// @Failure      401 {object} api.ErrorBody "Token invalid or expired"
// @Router       /auth/refresh [post]
func (h *AuthHandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Refresh"))

	var req RefreshTokenRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, TokenResponse{Success: true, TokenPair: *pair})
}

// Logout godoc
// @Summary      Logout
// @Description  Deletes the refresh token. Unknown tokens are accepted.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LogoutRequest true "Refresh token"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody
// @Router       /auth/logout [post]
func (h *AuthHandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Logout"))

	var req LogoutRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: MsgLoggedOut})
}

// ForgotPassword godoc
// @Summary      Forgot password
// @Description  Emails a reset link when the account exists. The response never reveals whether it does.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body ForgotPasswordRequest true "Email"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody
// @Router       /auth/forgot-password [post]
func (h *AuthHandlerImpl) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ForgotPassword"))

	var req ForgotPasswordRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, h.authService.ForgotPassword(r.Context(), req.Email))
}

// ResetPassword godoc
// @Summary      Reset password
// @Description  Sets a new password with a reset token and signs the user out everywhere.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body ResetPasswordRequest true "Token and new password"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody "Invalid or expired token"
// @Router       /auth/reset-password [post]
func (h *AuthHandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ResetPassword"))

	var req ResetPasswordRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: MsgPasswordReset})
}

// ChangePassword godoc
// @Summary      Change password
// @Description  Changes the password of the authenticated user and signs them out everywhere.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body ChangePasswordRequest true "Current and new password"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody "Current password is incorrect"
// @Failure      401 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /auth/change-password [post]
func (h *AuthHandlerImpl) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ChangePassword"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	if err := h.authService.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: MsgPasswordChanged})
}

// VerifyEmail godoc
// @Summary      Verify account
// @Description  Verifies an account with the OTP sent by email or SMS.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body VerifyEmailRequest true "Identifier and code"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody "Invalid or expired code"
// @Router       /auth/verify-email [post]
func (h *AuthHandlerImpl) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "VerifyEmail"))

	var req VerifyEmailRequest
	if !h.decode(w, r, l, &req) {
		return
	}

	res, err := h.authService.VerifyCode(r.Context(), NewIdentifier(req.Email, req.Phone), req.Code)
	if err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// VerifyEmailLink godoc
// @Summary      Verify account by link
// @Description  Legacy link-based verification.
// @Tags         Auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody "Invalid or expired token"
// @Router       /auth/verify-email/{token} [get]
func (h *AuthHandlerImpl) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "VerifyEmailLink"))

	token := chi.URLParam(r, "token")
	if token == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, ErrInvalidOrExpiredToken.Error())
		return
	}

	res, err := h.authService.VerifyToken(r.Context(), token)
	if err != nil {
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// ResendVerification godoc
// @Summary      Resend verification code
// @Description  Issues a new code and invalidates earlier ones. The response never reveals whether the account exists.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body ResendVerificationRequest true "Identifier"
// @Success      200 {object} types.Response
// @Failure      400 {object} api.ErrorBody
// @Router       /auth/resend-verification [post]
func (h *AuthHandlerImpl) ResendVerification(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "ResendVerification"))

	var req ResendVerificationRequest
	if !h.decode(w, r, l, &req) {
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, h.authService.ResendVerification(r.Context(), NewIdentifier(req.Email, req.Phone)))
}

// Me godoc
// @Summary      Current user
// @Description  Returns the profile of the authenticated user.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} api.ErrorBody
// @Failure      404 {object} api.ErrorBody
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandlerImpl) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Me"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	u, err := h.authService.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		h.fail(w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{Success: true, User: u})
}
