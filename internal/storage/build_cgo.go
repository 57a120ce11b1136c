//go:build sqlite_fast

package storage

import (
	// cgo SQLite driver, faster but requires a C toolchain.
	_ "github.com/mattn/go-sqlite3"
)

// DriverName selects the SQL driver registered by the build.
const DriverName = "sqlite3"

// BuildMode describes which SQLite driver this binary was built with.
const BuildMode = "cgo"
