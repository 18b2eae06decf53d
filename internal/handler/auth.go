package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "net/mail"
    "strings"
    "time"

    "github.com/juju/clock"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/config"
    "github.com/iliyamo/museum-tour-access/internal/middleware"
    "github.com/iliyamo/museum-tour-access/internal/model"
    "github.com/iliyamo/museum-tour-access/internal/repository"
    "github.com/iliyamo/museum-tour-access/internal/utils"
)

// UserStore is the part of repository.UserRepo used by the auth handlers.
type UserStore interface {
    Create(ctx context.Context, in repository.NewUser, cost int) (uint64, error)
    GetByLogin(ctx context.Context, login string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore is the part of repository.TokenRepo used by the auth handlers.
type TokenStore interface {
    StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
    ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
    RevokeByHash(ctx context.Context, tokenHash string) error
    RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  UserStore
    Tokens TokenStore
    Clock  clock.Clock
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, clk clock.Clock) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Clock: clk}
}

// ----- DTOs -----

type registerReq struct {
    Username string `json:"username"`
    Email    string `json:"email"`
    Password string `json:"password"`
    Name     string `json:"name"`
}
type loginReq struct {
    Username string `json:"username"` // username or email
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID       uint64  `json:"id"`
    Username string  `json:"username"`
    Email    string  `json:"email"`
    Name     *string `json:"name,omitempty"`
    Role     string  `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
    return userPart{ID: u.ID, Username: u.Username, Email: u.Email, Name: u.Name, Role: u.Role}
}

// validateRegistration mirrors the sign-up form rules.
func validateRegistration(req registerReq) string {
    switch {
    case len(req.Username) < 3:
        return "username must be at least 3 characters"
    case req.Email == "":
        return "email required"
    case len(req.Password) < utils.MinPasswordLen:
        return utils.ErrPasswordTooShort.Error()
    }
    if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
        return "invalid email address"
    }
    return ""
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
    now := h.Clock.Now()
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin, now)
    if err != nil {
        return authResp{}, err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays, now)
    if err != nil {
        return authResp{}, err
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return authResp{}, err
    }
    return authResp{
        User:    toUserPart(u),
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
    }, nil
}

// Register: create a CUSTOMER account and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Username = strings.TrimSpace(req.Username)
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    req.Name = strings.TrimSpace(req.Name)
    if msg := validateRegistration(req); msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    uid, err := h.Users.Create(ctx, repository.NewUser{
        Username: req.Username,
        Email:    req.Email,
        Name:     req.Name,
        Password: req.Password,
        Role:     model.RoleCustomer,
    }, h.Cfg.BcryptCost)
    switch {
    case errors.Is(err, repository.ErrUsernameExists):
        return c.JSON(http.StatusConflict, echo.Map{"error": "username already taken"})
    case errors.Is(err, repository.ErrEmailExists):
        return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
    case err != nil:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }

    u := model.User{ID: uid, Username: req.Username, Email: req.Email, Role: model.RoleCustomer}
    if req.Name != "" {
        u.Name = &req.Name
    }
    resp, err := h.issue(ctx, u)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    login := strings.TrimSpace(req.Username)
    if login == "" {
        login = strings.TrimSpace(req.Email)
    }
    if login == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    u, err := h.Users.GetByLogin(ctx, login)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    resp, err := h.issue(ctx, u)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := requestCtx(c)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    _ = h.Tokens.RevokeByHash(ctx, hash)

    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    resp, err := h.issue(ctx, u)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    return c.JSON(http.StatusOK, resp)
}

// RefreshAccess issues a new access token for a valid refresh token
// without rotating it.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin, h.Clock.Now())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes either the refresh token in the body (one session) or,
// when only a valid bearer token is sent, every session of that user.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    if raw, ok := middleware.BearerToken(c.Request()); ok {
        if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw); err == nil {
            uid = claims.UserID
        }
    }
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := requestCtx(c)
    defer cancel()

    switch {
    case refreshToken != "":
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    case uid != 0:
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    return c.JSON(http.StatusOK, toUserPart(u))
}
