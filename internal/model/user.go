package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Handlers define their own response types so the
// password hash never leaves the repository layer.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – unique email address.
//  Name         – optional display name.
//  PasswordHash – bcrypt hashed password.
//  Role         – CUSTOMER or ADMIN.
//  CreatedAt    – timestamp of creation.
type User struct {
    ID           uint64    // users.id
    Username     string    // users.username
    Email        string    // users.email
    Name         *string   // users.name (nullable)
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
}

// Roles stored in users.role and carried in the access token.
const (
    RoleCustomer = "CUSTOMER"
    RoleAdmin    = "ADMIN"
)

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the raw token is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
