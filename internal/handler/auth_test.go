package handler

import (
    "encoding/json"
    "net/http"
    "testing"
    "time"

    "github.com/juju/clock/testclock"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/config"
    "github.com/iliyamo/museum-tour-access/internal/middleware"
    "github.com/iliyamo/museum-tour-access/internal/model"
)

func newAuthServer() (*echo.Echo, *fakeTokens) {
    cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
    tokens := newFakeTokens()
    h := NewAuthHandler(cfg, &fakeUsers{}, tokens, testclock.NewClock(time.Now())) // access tokens are checked against the wall clock
    e := echo.New()
    e.POST("/v1/auth/register", h.Register)
    e.POST("/v1/auth/login", h.Login)
    e.POST("/v1/auth/refresh", h.Refresh)
    e.POST("/v1/auth/logout", h.Logout)
    e.GET("/v1/me", h.Me, middleware.JWTAuth(testSecret))
    return e, tokens
}

func TestRegisterValidation(t *testing.T) {
    e, _ := newAuthServer()
    cases := []struct {
        name string
        body string
        want int
    }{
        {"short username", `{"username":"ab","email":"a@b.io","password":"secret1"}`, http.StatusBadRequest},
        {"bad email", `{"username":"anna","email":"not-an-email","password":"secret1"}`, http.StatusBadRequest},
        {"short password", `{"username":"anna","email":"anna@example.com","password":"123"}`, http.StatusBadRequest},
        {"ok", `{"username":"anna","email":"Anna@Example.com","password":"secret1","name":"Anna"}`, http.StatusCreated},
        {"username taken", `{"username":"anna","email":"other@example.com","password":"secret1"}`, http.StatusConflict},
        {"email taken", `{"username":"anna2","email":"anna@example.com","password":"secret1"}`, http.StatusConflict},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if rec := do(e, http.MethodPost, "/v1/auth/register", tc.body, ""); rec.Code != tc.want {
                t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
            }
        })
    }
}

func TestRegisterAlwaysCustomer(t *testing.T) {
    e, _ := newAuthServer()
    rec := do(e, http.MethodPost, "/v1/auth/register",
        `{"username":"mallory","email":"m@example.com","password":"secret1","role":"ADMIN"}`, "")
    if rec.Code != http.StatusCreated {
        t.Fatalf("status = %d", rec.Code)
    }
    var resp authResp
    if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
        t.Fatal(err)
    }
    if resp.User.Role != model.RoleCustomer {
        t.Fatalf("role = %q", resp.User.Role)
    }
}

func TestLoginRefreshLogout(t *testing.T) {
    e, tokens := newAuthServer()
    do(e, http.MethodPost, "/v1/auth/register", `{"username":"bob","email":"bob@example.com","password":"secret1"}`, "")

    if rec := do(e, http.MethodPost, "/v1/auth/login", `{"username":"bob","password":"wrong!!"}`, ""); rec.Code != http.StatusUnauthorized {
        t.Fatalf("wrong password: status = %d", rec.Code)
    }
    rec := do(e, http.MethodPost, "/v1/auth/login", `{"username":"bob@example.com","password":"secret1"}`, "")
    if rec.Code != http.StatusOK {
        t.Fatalf("login by email: status = %d (%s)", rec.Code, rec.Body.String())
    }
    var login authResp
    if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
        t.Fatal(err)
    }

    me := do(e, http.MethodGet, "/v1/me", "", "Bearer "+login.Access.Token)
    if me.Code != http.StatusOK {
        t.Fatalf("me: status = %d", me.Code)
    }

    rec = do(e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+login.Refresh.Token+`"}`, "")
    if rec.Code != http.StatusOK {
        t.Fatalf("refresh: status = %d", rec.Code)
    }
    // the old refresh token is single use
    if rec := do(e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+login.Refresh.Token+`"}`, ""); rec.Code != http.StatusUnauthorized {
        t.Fatalf("reused refresh: status = %d", rec.Code)
    }

    if rec := do(e, http.MethodPost, "/v1/auth/logout", "", "Bearer "+login.Access.Token); rec.Code != http.StatusNoContent {
        t.Fatalf("logout: status = %d", rec.Code)
    }
    if n := len(tokens.active); n != 0 {
        t.Fatalf("active refresh tokens after logout = %d", n)
    }
}
