//go:build cgo

package store

import _ "github.com/mattn/go-sqlite3"

// driverName is the database/sql driver registered for this build. The cgo
// build uses mattn/go-sqlite3, which is required for the sqlite-vec
// extension (see init_vec.go, gated on `sqlite_vec && cgo`).
const driverName = "sqlite3"
