package handlers

import (
	"log/slog"
	"net/http"

	"taskmanager/internal/auth"
	"taskmanager/internal/dto"
	"taskmanager/internal/service"

	"github.com/gin-gonic/gin"
)

// CookieOptions controls the session cookie set on login and register.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandler handles login, register, logout and password changes.
type AuthHandler struct {
	*Responder
	sessions *auth.SessionStore
	userSvc  *service.UserService
	cookie   CookieOptions
	log      *slog.Logger
}

// NewAuthHandler returns a new AuthHandler. sessions may be nil; then no cookie is issued.
func NewAuthHandler(r *Responder, sessions *auth.SessionStore, userSvc *service.UserService, cookie CookieOptions, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Responder: r, sessions: sessions, userSvc: userSvc, cookie: cookie, log: log}
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.Envelope{data=dto.AuthResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      401   {object}  dto.Envelope
// @Failure      429   {object}  dto.Envelope
// @Failure      500   {object}  dto.Envelope
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	res, err := h.userSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.startSession(c, res.User.ID)
	h.OK(c, http.StatusOK, dto.AuthResponse{Token: res.Token, User: dto.UserFromIdentity(res.User)})
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RegisterRequest  true  "New account"
// @Success      201   {object}  dto.Envelope{data=dto.AuthResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      409   {object}  dto.Envelope
// @Failure      429   {object}  dto.Envelope
// @Failure      500   {object}  dto.Envelope
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	res, err := h.userSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.startSession(c, res.User.ID)
	h.OK(c, http.StatusCreated, dto.AuthResponse{Token: res.Token, User: dto.UserFromIdentity(res.User)})
}

// Logout godoc
// @Summary      Logout
// @Description  Ends the cookie session if there is one. Bearer tokens stay valid until they expire.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  dto.Envelope
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(h.cookie.Name)
	if err != nil || sessionID == "" || h.sessions == nil {
		h.clearCookie(c)
		h.Message(c, "Already logged out")
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		h.log.Warn("delete session", "error", err)
	}
	h.clearCookie(c)
	h.Message(c, "Logged out successfully")
}

// ChangePassword godoc
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     CookieAuth
// @Param        body  body      dto.ChangePasswordRequest  true  "Current and new password"
// @Success      200   {object}  dto.Envelope
// @Failure      400   {object}  dto.Envelope
// @Failure      401   {object}  dto.Envelope
// @Failure      500   {object}  dto.Envelope
// @Router       /auth/change-password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}
	if err := h.userSvc.ChangePassword(c.Request.Context(), id.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "Password changed successfully")
}

// startSession issues the cookie session. Failure only costs the cookie; the token still works.
func (h *AuthHandler) startSession(c *gin.Context, userID string) {
	if h.sessions == nil {
		return
	}
	sessionID, err := h.sessions.Create(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn("create session", "error", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sessionID, int(h.sessions.TTL().Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}
