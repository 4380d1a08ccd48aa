// Package repository implements MySQL persistence for coupons, applications,
// approval tokens, incubation centres and admin accounts.  Sentinel errors
// defined here let the service and handler layers tell failure scenarios
// apart without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, e.g. the
// same email redeeming the same coupon twice.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a state transition cannot be applied because
// the row is no longer in the expected state (an application that already
// left pending).
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
