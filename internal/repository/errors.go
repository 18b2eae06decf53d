// Package repository holds the MySQL data access layer.  Error values
// shared by several repositories live here so handlers can tell failure
// scenarios apart; catalog lookups report misses with
// entitlement.NotFoundError so the same error flows through the
// purchase path unchanged.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an insert collides with an existing row,
// e.g. adding a museum to a bundle twice.  Handlers translate it into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// errNumDuplicateEntry is MySQL's ER_DUP_ENTRY.
const errNumDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique constraint violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errNumDuplicateEntry
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}

// duplicateKeyName returns the index name from a duplicate entry error,
// e.g. "uq_users_email", or "" when it cannot be determined.
func duplicateKeyName(err error) string {
	msg := err.Error()
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return ""
	}
	rest := msg[i+len("for key '"):]
	if j := strings.IndexByte(rest, '\''); j >= 0 {
		rest = rest[:j]
	}
	// MySQL 8 prefixes the table name: 'users.uq_users_email'
	if k := strings.LastIndexByte(rest, '.'); k >= 0 {
		rest = rest[k+1:]
	}
	return rest
}
