//go:build !cgo

package store

import _ "modernc.org/sqlite"

// driverName is the database/sql driver registered for this build. The
// pure-Go build uses modernc.org/sqlite, which has no sqlite-vec support;
// vector search falls back to a brute-force cosine scan (see vector.go).
const driverName = "sqlite"
