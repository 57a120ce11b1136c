//go:build !sqlite_fast

package storage

import (
	// Pure-Go SQLite driver, no cgo required.
	_ "modernc.org/sqlite"
)

// DriverName selects the SQL driver registered by the build.
const DriverName = "sqlite"

// BuildMode describes which SQLite driver this binary was built with.
const BuildMode = "pure-go"
