//go:build cgo

package cache

import (
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

func init() {
	cgoDriverAvailable = true
}
