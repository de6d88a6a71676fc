//go:build !tinygo

package kernel

import "runtime/debug"

// panicTrace is the goroutine stack of the panicking task, for the log.
func panicTrace() []byte { return debug.Stack() }
