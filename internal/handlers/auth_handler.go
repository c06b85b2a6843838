package handlers

import (
	"errors"
	"net/http"
	"strings"

	"metronix/internal/api"
	"metronix/internal/config"
	"metronix/internal/middleware"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	userService  services.UserServiceInterface
	tokenService services.TokenServiceInterface
	config       *config.Config
	logger       *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, tokenService services.TokenServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
		config:       cfg,
		logger:       logger,
	}
}

// Login verifies email and password and starts a cookie session
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req api.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(string(req.Email)))
	span.SetAttributes(attribute.Bool("auth.password_provided", req.Password != ""))

	user, err := h.userService.AuthenticateUser(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, contextutils.ErrInvalidCredentials) {
			h.logger.Warn(ctx, "Login failed", map[string]interface{}{"email": contextutils.MaskEmail(email)})
		}
		respondError(ctx, c, h.logger, "Failed to authenticate user", err, nil)
		return
	}

	span.SetAttributes(
		observability.AttributeUserID(user.ID),
		observability.AttributeRole(string(user.Role)),
	)

	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Name)
	session.Set(middleware.RoleKey, string(user.Role))
	if err := session.Save(); err != nil {
		h.logger.Error(ctx, "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInternalError, "failed to create session"))
		return
	}

	h.logger.Info(ctx, "User logged in", map[string]interface{}{"user_id": user.ID, "role": string(user.Role)})
	c.JSON(http.StatusOK, api.LoginResponse{
		Success: true,
		Message: stringPtr("Login successful"),
		User:    convertUserToAPI(user),
	})
}

// Logout clears the session
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	if userID, ok := sessionUserID(c); ok {
		span.SetAttributes(observability.AttributeUserID(userID))
	}

	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: config.SessionPath, MaxAge: -1})
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInternalError, "failed to clear session"))
		return
	}

	c.JSON(http.StatusOK, api.SuccessResponse{
		Success: true,
		Message: stringPtr("Logout successful"),
	})
}

// Status reports whether the session belongs to a known user
func (h *AuthHandler) Status(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "status")
	defer observability.FinishSpan(span, nil)

	userID, ok := sessionUserID(c)
	if !ok {
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		c.JSON(http.StatusOK, api.AuthStatusResponse{Authenticated: false})
		return
	}

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, contextutils.ErrRecordNotFound) {
			respondError(ctx, c, h.logger, "Error getting user by ID", err, map[string]interface{}{"user_id": userID})
			return
		}
		// Stale session for a user that no longer exists
		session := sessions.Default(c)
		session.Clear()
		if err := session.Save(); err != nil {
			h.logger.Error(ctx, "Error saving session", err, nil)
		}
		span.SetAttributes(attribute.Bool("auth.user_found", false))
		c.JSON(http.StatusOK, api.AuthStatusResponse{Authenticated: false})
		return
	}

	span.SetAttributes(
		attribute.Bool("auth.authenticated", true),
		observability.AttributeUserID(user.ID),
		observability.AttributeRole(string(user.Role)),
	)
	c.JSON(http.StatusOK, api.AuthStatusResponse{
		Authenticated: true,
		User:          convertUserToAPI(user),
	})
}

// Signup registers a citizen account and logs it in
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "signup")
	defer observability.FinishSpan(span, nil)

	if h.config != nil && h.config.IsSignupDisabled() {
		span.SetAttributes(attribute.Bool("auth.signups_disabled", true))
		HandleAppError(c, contextutils.WrapError(contextutils.ErrForbidden, "signups are disabled"))
		return
	}

	var req api.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(string(req.Email)))

	h.logger.Info(ctx, "Attempting signup", map[string]interface{}{"email": contextutils.MaskEmail(email)})

	user, err := h.userService.RegisterCitizen(ctx, strings.TrimSpace(req.Name), email, req.Password)
	if err != nil {
		if errors.Is(err, contextutils.ErrRecordExists) {
			span.SetAttributes(attribute.Bool("signup.email_exists", true))
		}
		respondError(ctx, c, h.logger, "Failed to register citizen", err, nil)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Name)
	session.Set(middleware.RoleKey, string(user.Role))
	if err := session.Save(); err != nil {
		h.logger.Error(ctx, "Failed to save session after signup", err, map[string]interface{}{"user_id": user.ID})
	}

	c.JSON(http.StatusCreated, api.LoginResponse{
		Success: true,
		Message: stringPtr("Account created"),
		User:    convertUserToAPI(user),
	})
}

// Token exchanges email and password for a bearer token
func (h *AuthHandler) Token(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "issue_token")
	defer observability.FinishSpan(span, nil)

	var req api.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.AuthenticateUser(ctx, strings.ToLower(strings.TrimSpace(string(req.Email))), req.Password)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to authenticate token request", err, nil)
		return
	}

	token, expiresAt, err := h.tokenService.IssueToken(ctx, user)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to issue token", err, map[string]interface{}{"user_id": user.ID})
		return
	}

	span.SetAttributes(observability.AttributeUserID(user.ID))
	c.JSON(http.StatusOK, api.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}
