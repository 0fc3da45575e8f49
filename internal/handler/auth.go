package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/config"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/sl"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
	"github.com/iliyamo/beach-seat-reservation/internal/queue"
	"github.com/iliyamo/beach-seat-reservation/internal/repository"
	"github.com/iliyamo/beach-seat-reservation/internal/session"
	"github.com/iliyamo/beach-seat-reservation/internal/utils"
)

const dbTimeout = 5 * time.Second

// ResetNotifier delivers password reset tokens out of band.
type ResetNotifier interface {
	PublishPasswordResetRequested(ctx context.Context, ev queue.PasswordResetRequestedEvent) error
}

// AuthHandler bundles dependencies for account and session endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions session.Store
	Resets   ResetNotifier
	Log      *slog.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s session.Store, resets ResetNotifier, log *slog.Logger) *AuthHandler {
	if resets == nil {
		resets = queue.NopPublisher{}
	}
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Resets: resets, Log: log}
}

// ----- DTOs -----

type signupReq struct {
	Name     string `json:"name" validate:"required"`
	Surname  string `json:"surname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=200"`
	Tel      string `json:"tel" validate:"required,numeric,len=10"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type editInfoReq struct {
	Name    string `json:"name" validate:"required"`
	Surname string `json:"surname" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
}

type resetRequestReq struct {
	Email string `json:"email" validate:"required,email"`
}

type changePasswordReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=200"`
}

type sessionResp struct {
	Logged bool            `json:"logged"`
	User   *model.Customer `json:"user,omitempty"`
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid body")
	}
	return c.Validate(req)
}

// Signup creates a CUSTOMER account, or ADMIN for configured addresses.
func (h *AuthHandler) Signup(c echo.Context) error {
	if _, ok := middleware.SessionFrom(c); ok {
		return apperr.ErrAlreadyLoggedIn
	}
	var req signupReq
	if err := bind(c, &req); err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	role := model.RoleCustomer
	if h.Cfg.IsAdmin(req.Email) {
		role = model.RoleAdmin
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Users.Create(ctx, repository.NewAccount{
		Name:         req.Name,
		Surname:      req.Surname,
		Email:        req.Email,
		Tel:          req.Tel,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return err
	}
	h.Log.Info("user signed up", slog.String("user_id", a.ID), slog.String("role", a.Role))
	return c.JSON(http.StatusOK, echo.Map{"msg": "user created, please log in", "user": a.Customer()})
}

// Login verifies the credentials, opens a server side session and sets the
// signed session cookie plus readable name/surname cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	if _, ok := middleware.SessionFrom(c); ok {
		return apperr.ErrAlreadyLoggedIn
	}
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return apperr.ErrBadCredentials
	}

	s := session.Session{ID: uuid.NewString(), User: a.Customer(), CreatedAt: time.Now().UTC()}
	if err := h.Sessions.Save(ctx, s, h.Cfg.Session.TTL); err != nil {
		return err
	}
	tok, err := utils.NewSessionToken(h.Cfg.Session.Secret, s.ID, h.Cfg.Session.TTL)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.Session.CookieName,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   h.Cfg.Env == config.EnvProd,
		SameSite: http.SameSiteLaxMode,
	})
	c.SetCookie(&http.Cookie{Name: "name", Value: a.Name, Path: "/", Expires: tok.Exp})
	c.SetCookie(&http.Cookie{Name: "surname", Value: a.Surname, Path: "/", Expires: tok.Exp})

	h.Log.Info("user logged in", slog.String("user_id", a.ID))
	return c.JSON(http.StatusOK, echo.Map{"msg": "logged in", "user": s.User})
}

// Logout destroys the session together with any pending payment.
func (h *AuthHandler) Logout(c echo.Context) error {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return withStatus(http.StatusBadRequest, apperr.ErrNotLoggedIn)
	}
	if err := h.Sessions.Delete(c.Request().Context(), s.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	for _, name := range []string{h.Cfg.Session.CookieName, "name", "surname"} {
		c.SetCookie(&http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "logged out"})
}

// Status reports whether the caller holds a live session.
func (h *AuthHandler) Status(c echo.Context) error {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, sessionResp{Logged: false})
	}
	return c.JSON(http.StatusOK, sessionResp{Logged: true, User: &s.User})
}

// EditUserInfo updates name, surname and email and refreshes the session.
func (h *AuthHandler) EditUserInfo(c echo.Context) error {
	s, _ := middleware.SessionFrom(c)
	var req editInfoReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Users.UpdateInfo(ctx, s.User.ID, req.Name, req.Surname, req.Email)
	if err != nil {
		return err
	}
	s.User = a.Customer()
	if err := h.Sessions.Save(ctx, s, h.Cfg.Session.TTL); err != nil {
		h.Log.Warn("refresh session after edit failed", slog.String("user_id", a.ID), sl.Err(err))
	}
	middleware.SetSession(c, s)
	return c.JSON(http.StatusOK, echo.Map{"msg": "user info updated", "user": s.User})
}

// RequestChangePassword issues a reset token for the account and hands it to
// the reset notifier. The response only tells when the token expires.
func (h *AuthHandler) RequestChangePassword(c echo.Context) error {
	var req resetRequestReq
	if err := bind(c, &req); err != nil {
		return err
	}
	raw, err := utils.RandomToken(32)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	now := time.Now()
	tok, err := h.Users.IssueResetToken(ctx, a.Email, raw, now, h.Cfg.ResetTokenTTL)
	if err != nil {
		return err
	}

	ev := queue.PasswordResetRequestedEvent{
		UserID:      a.ID,
		Email:       a.Email,
		Token:       tok.Token,
		ExpiresAt:   tok.ExpiresAt.UTC().Format(time.RFC3339),
		RequestedAt: now.UTC().Format(time.RFC3339),
	}
	if err := h.Resets.PublishPasswordResetRequested(ctx, ev); err != nil {
		h.Log.Error("reset token delivery failed", slog.String("user_id", a.ID), sl.Err(err))
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "reset token sent", "expiresAt": tok.ExpiresAt})
}

// ChangePassword redeems a reset token.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.ConsumeResetToken(ctx, req.Token, hash, time.Now()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "password changed"})
}
