package hal

import (
	"errors"

	"tinygo.org/x/tinyfs"
)

var ErrNotImplemented = errors.New("not implemented")

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// Serial is the raw console byte stream.
type Serial interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Clock provides monotonic elapsed time since boot, in ticks.
//
// One tick is one millisecond on every current backend; the kernel only
// assumes ticks are monotonic and coarse enough for scheduling quanta.
type Clock interface {
	Now() uint64
}

// Timer is a one-shot timer with a completion callback.
//
// Start replaces any pending shot. The callback may fire on another
// goroutine; it must only set flags, never call back into the kernel.
// A nil Timer is tolerated: the system degrades to purely cooperative
// scheduling.
type Timer interface {
	Start(ticks uint32, fn func())
	Cancel()
	Remaining() uint32
}

// HAL provides the only contact point between the OS and the outside world.
//
// Block returns the fixed-size block store consumed by the filesystem and
// overlay-loader collaborators; it may be nil on diskless configurations.
type HAL interface {
	Logger() Logger
	Serial() Serial
	Clock() Clock
	Timer() Timer
	Block() tinyfs.BlockDevice
}
