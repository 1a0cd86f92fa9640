package sqlite

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// classify wraps err with op, turning lock contention into a conflict the
// caller may retry after a fresh read.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if isBusy(err) {
		return domain.Conflict("concurrent modification, retry with fresh data", errors.Wrap(err, op))
	}
	return errors.Wrap(err, op)
}

func isBusy(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	// libsql reports remote errors as plain strings
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked") ||
		strings.Contains(msg, "database table is locked")
}
