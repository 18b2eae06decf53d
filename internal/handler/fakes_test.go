package handler

import (
    "context"
    "database/sql"
    "net/http"
    "net/http/httptest"
    "sort"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/entitlement"
    "github.com/iliyamo/museum-tour-access/internal/model"
    "github.com/iliyamo/museum-tour-access/internal/repository"
    "github.com/iliyamo/museum-tour-access/internal/utils"
)

const testSecret = "handler-test-secret"

type fakeMuseums struct {
    byID map[uint64]model.Museum
}

func newFakeMuseums(ms ...model.Museum) *fakeMuseums {
    f := &fakeMuseums{byID: map[uint64]model.Museum{}}
    for _, m := range ms {
        f.byID[m.ID] = m
    }
    return f
}

func (f *fakeMuseums) ListAll(context.Context) ([]model.Museum, error) {
    out := make([]model.Museum, 0, len(f.byID))
    for _, m := range f.byID {
        out = append(out, m)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (f *fakeMuseums) GetByID(_ context.Context, id uint64) (*model.Museum, error) {
    m, ok := f.byID[id]
    if !ok {
        return nil, entitlement.NotFoundError{Resource: "museum", ID: id}
    }
    return &m, nil
}

func (f *fakeMuseums) ListByIDs(_ context.Context, ids []uint64) ([]model.Museum, error) {
    out := []model.Museum{}
    for _, id := range ids {
        if m, ok := f.byID[id]; ok {
            out = append(out, m)
        }
    }
    return out, nil
}

func (f *fakeMuseums) Stats(context.Context) ([]model.MuseumStat, error) { return nil, nil }

func (f *fakeMuseums) Count(context.Context) (int, error) { return len(f.byID), nil }

func (f *fakeMuseums) Create(_ context.Context, m *model.Museum) error {
    m.ID = uint64(len(f.byID) + 1)
    f.byID[m.ID] = *m
    return nil
}

type fakeUsers struct {
    mu    sync.Mutex
    users []model.User
}

func (f *fakeUsers) Create(_ context.Context, in repository.NewUser, cost int) (uint64, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, u := range f.users {
        if u.Username == in.Username {
            return 0, repository.ErrUsernameExists
        }
        if u.Email == in.Email {
            return 0, repository.ErrEmailExists
        }
    }
    hash, err := utils.HashPassword(in.Password, cost)
    if err != nil {
        return 0, err
    }
    u := model.User{ID: uint64(len(f.users) + 1), Username: in.Username, Email: in.Email, PasswordHash: hash, Role: in.Role}
    f.users = append(f.users, u)
    return u.ID, nil
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (model.User, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, u := range f.users {
        if u.Username == login || u.Email == strings.ToLower(login) {
            return u, nil
        }
    }
    return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, u := range f.users {
        if u.ID == id {
            return u, nil
        }
    }
    return model.User{}, sql.ErrNoRows
}

type fakeTokens struct {
    mu     sync.Mutex
    active map[string]uint64
}

func newFakeTokens() *fakeTokens { return &fakeTokens{active: map[string]uint64{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
    f.mu.Lock()
    f.active[hash] = userID
    f.mu.Unlock()
    return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    uid, ok := f.active[hash]
    if !ok {
        return 0, sql.ErrNoRows
    }
    return uid, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
    f.mu.Lock()
    delete(f.active, hash)
    f.mu.Unlock()
    return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    for h, uid := range f.active {
        if uid == userID {
            delete(f.active, h)
        }
    }
    return nil
}

func bearerFor(t *testing.T, userID uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(testSecret, userID, role, 5, time.Now())
    if err != nil {
        t.Fatalf("token: %v", err)
    }
    return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, path, body, auth string) *httptest.ResponseRecorder {
    var req *http.Request
    if body != "" {
        req = httptest.NewRequest(method, path, strings.NewReader(body))
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    } else {
        req = httptest.NewRequest(method, path, nil)
    }
    if auth != "" {
        req.Header.Set("Authorization", auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}
