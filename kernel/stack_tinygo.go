//go:build tinygo

package kernel

// No stack capture on the bare-metal runtime; the panic value alone is
// logged.
func panicTrace() []byte { return nil }
