//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tinygo.org/x/tinyfs"
)

type hostHAL struct {
	logger *hostLogger
	serial *hostSerial
	clock  *hostClock
	timer  *oneShot
	block  tinyfs.BlockDevice
}

// HostConfig selects optional host backends.
type HostConfig struct {
	BlockPath  string // backing file for the block device; empty = no block device
	BlockBytes uint32
	Preempt    bool // expose the one-shot timer to the kernel
}

// New returns a host HAL implementation.
func New(cfg HostConfig) HAL {
	h := &hostHAL{
		logger: &hostLogger{w: os.Stderr},
		serial: newHostSerial(),
		clock:  &hostClock{start: time.Now()},
	}
	if cfg.Preempt {
		h.timer = newOneShot()
	}
	if cfg.BlockPath != "" {
		b, err := openHostBlock(cfg.BlockPath, cfg.BlockBytes)
		if err != nil {
			h.logger.WriteLineString(fmt.Sprintf("hal: block device unavailable: %v", err))
		} else {
			h.block = b
		}
	}
	return h
}

func (h *hostHAL) Logger() Logger            { return h.logger }
func (h *hostHAL) Serial() Serial            { return h.serial }
func (h *hostHAL) Clock() Clock              { return h.clock }
func (h *hostHAL) Block() tinyfs.BlockDevice { return h.block }

func (h *hostHAL) Timer() Timer {
	if h.timer == nil {
		return nil
	}
	return h.timer
}

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostClock struct {
	start time.Time
}

func (c *hostClock) Now() uint64 {
	return uint64(time.Since(c.start) / tickDur)
}

// hostSerial adapts stdin/stdout to the Serial contract. Reads must not
// block the scheduler, so a background goroutine pumps stdin into a
// channel and Read drains whatever arrived.
type hostSerial struct {
	mu sync.Mutex
	w  *os.File
	in chan byte
}

func newHostSerial() *hostSerial {
	s := &hostSerial{w: os.Stdout, in: make(chan byte, 256)}
	go func() {
		var b [1]byte
		for {
			n, err := os.Stdin.Read(b[:])
			if n > 0 {
				s.in <- b[0]
			}
			if err != nil {
				close(s.in)
				return
			}
		}
	}()
	return s
}

func (s *hostSerial) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		select {
		case c, ok := <-s.in:
			if !ok {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			p[n] = c
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
