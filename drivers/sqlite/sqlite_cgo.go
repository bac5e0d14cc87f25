//go:build cgo

package sqlite

import (
	"errors"
	"strconv"

	"github.com/mattn/go-sqlite3"
)

func errorCode(err error) string {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode != 0 {
			return strconv.Itoa(int(sqliteErr.ExtendedCode))
		}
		return strconv.Itoa(int(sqliteErr.Code))
	}
	return ""
}
