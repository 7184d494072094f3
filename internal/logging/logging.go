// Package logging is a thin wrapper over the standard library's log
// package, giving the store and pool a single place to prefix and
// (in tests) silence diagnostic output, mirroring the teacher's use of
// stdlib log in cmd/trigo and pkg/server.
package logging

import (
	"io"
	"log"
	"os"
)

// Logger is the minimal surface the store/pool/parser need. It is
// satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Default returns a Logger writing to stderr with a "trigo: " prefix.
func Default() Logger {
	return log.New(os.Stderr, "trigo: ", log.LstdFlags)
}

// Discard returns a Logger that drops everything, for use in tests and
// library callers who configure their own logging upstream.
func Discard() Logger {
	return log.New(io.Discard, "", 0)
}
