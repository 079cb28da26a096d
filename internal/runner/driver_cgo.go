//go:build cgo

package runner

import _ "github.com/mattn/go-sqlite3"

// CgoDriver is the SQLite C library driver, available in cgo builds.
const CgoDriver = "sqlite3"

func init() {
	drivers[CgoDriver] = true
}
