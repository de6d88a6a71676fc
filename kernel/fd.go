package kernel

// Per-task I/O redirection. Tasks start on a shared static table pointing
// every standard slot at the serial console; the table is copied on the
// first customization so redirections never leak between tasks.

// NumFDs is the size of a task's redirection table.
const NumFDs = 8

const (
	FDStdin  = 0
	FDStdout = 1
	FDStderr = 2
)

type fdKind uint8

const (
	fdNone fdKind = iota
	fdSerial
	fdPipeR
	fdPipeW
)

// FD is one redirection slot.
type FD struct {
	kind fdKind
	pipe *Pipe
}

type fdTable struct {
	shared bool
	slots  [NumFDs]FD
}

func newSerialFDs() fdTable {
	t := fdTable{shared: true}
	t.slots[FDStdin] = FD{kind: fdSerial}
	t.slots[FDStdout] = FD{kind: fdSerial}
	t.slots[FDStderr] = FD{kind: fdSerial}
	return t
}

// ownFDs returns the task's private table, copying the shared one first.
func (k *Kernel) ownFDs(id TaskID) *fdTable {
	t := &k.tasks[id]
	if t.fds.shared {
		priv := *t.fds
		priv.shared = false
		t.fds = &priv
	}
	return t.fds
}

// closeFDs drops every redirection and rejoins the shared default table.
func (k *Kernel) closeFDs(id TaskID) {
	t := &k.tasks[id]
	for i := range t.fds.slots {
		if p := t.fds.slots[i].pipe; p != nil && !t.fds.shared {
			p.closeEnd(t.fds.slots[i].kind)
		}
	}
	t.fds = &k.defaultFDs
}

// SetFD redirects one slot of the calling task's table (copy-on-write).
func (tc *Context) SetFD(n int, fd FD) bool {
	if n < 0 || n >= NumFDs {
		return false
	}
	tc.k.ownFDs(tc.id).slots[n] = fd
	return true
}

// ReadFD reads from a redirection slot, yielding while no data is
// available. Returns 0, false once the stream is gone.
func (tc *Context) ReadFD(n int, p []byte) (int, bool) {
	if n < 0 || n >= NumFDs {
		return 0, false
	}
	fd := tc.k.tasks[tc.id].fds.slots[n]
	switch fd.kind {
	case fdSerial:
		return tc.readSerial(p)
	case fdPipeR:
		return fd.pipe.read(tc, p)
	default:
		return 0, false
	}
}

// WriteFD writes to a redirection slot, yielding while the sink is full.
func (tc *Context) WriteFD(n int, p []byte) (int, bool) {
	if n < 0 || n >= NumFDs {
		return 0, false
	}
	fd := tc.k.tasks[tc.id].fds.slots[n]
	switch fd.kind {
	case fdSerial:
		if tc.k.serial == nil {
			return 0, false
		}
		w, err := tc.k.serial.Write(p)
		return w, err == nil
	case fdPipeW:
		return fd.pipe.write(tc, p)
	default:
		return 0, false
	}
}

// Print writes a string to stdout.
func (tc *Context) Print(s string) {
	tc.WriteFD(FDStdout, []byte(s))
}

func (tc *Context) readSerial(p []byte) (int, bool) {
	if tc.k.serial == nil {
		return 0, false
	}
	for {
		n, err := tc.k.serial.Read(p)
		if err != nil {
			return n, false
		}
		if n > 0 {
			return n, true
		}
		tc.Yield()
	}
}

// ReadLine reads one newline-terminated line from stdin, without the
// terminator. CR is tolerated before LF.
func (tc *Context) ReadLine(buf []byte) (string, bool) {
	n := 0
	var b [1]byte
	for {
		r, ok := tc.ReadFD(FDStdin, b[:])
		if !ok {
			return string(buf[:n]), false
		}
		if r == 0 {
			continue
		}
		c := b[0]
		if c == '\r' {
			continue
		}
		if c == '\n' {
			return string(buf[:n]), true
		}
		if n < len(buf) {
			buf[n] = c
			n++
		}
	}
}

const pipeBytes = 256

// Pipe is a byte ring connecting two pipeline segments. Single reader,
// single writer, both scheduled tasks.
type Pipe struct {
	head   uint16
	tail   uint16
	buf    [pipeBytes]byte
	closed bool
}

// pipePair returns the two redirection ends of a fresh pipe.
func pipePair() (r FD, w FD) {
	p := &Pipe{}
	return FD{kind: fdPipeR, pipe: p}, FD{kind: fdPipeW, pipe: p}
}

func (p *Pipe) closeEnd(kind fdKind) {
	if kind == fdPipeW || kind == fdPipeR {
		p.closed = true
	}
}

func (p *Pipe) len() int { return int(p.head - p.tail) }

func (p *Pipe) write(tc *Context, b []byte) (int, bool) {
	written := 0
	for written < len(b) {
		if p.closed {
			return written, false
		}
		if p.len() == pipeBytes {
			tc.Yield()
			continue
		}
		p.buf[p.head%pipeBytes] = b[written]
		p.head++
		written++
	}
	return written, true
}

func (p *Pipe) read(tc *Context, b []byte) (int, bool) {
	for {
		if p.len() > 0 {
			n := 0
			for n < len(b) && p.len() > 0 {
				b[n] = p.buf[p.tail%pipeBytes]
				p.tail++
				n++
			}
			return n, true
		}
		if p.closed {
			return 0, false
		}
		tc.Yield()
	}
}
