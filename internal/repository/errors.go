// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to
// distinguish "not found" from infrastructure failures and to recognise
// constraint violations reported by MySQL.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a write violates a uniqueness constraint,
// such as a second ticket for the same projection and seat.  The unique
// index is the last line of defence against concurrent double booking.
var ErrConflict = errors.New("conflict")

// ErrInUse is returned when a delete is blocked by rows that still
// reference the target, such as tickets sold for a projection.
var ErrInUse = errors.New("referenced by other rows")

// MySQL server error numbers.
const (
	mysqlDuplicateEntry = 1062
	mysqlRowReferenced  = 1451
)

// isDuplicateKey reports whether err is a MySQL duplicate entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// isRowReferenced reports whether err is a MySQL foreign key violation on
// delete of a parent row.
func isRowReferenced(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlRowReferenced
}
