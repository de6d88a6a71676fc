package kernel

import (
	"bytes"
	"io"
	"testing"
)

func pipedPair() (writerFDs, readerFDs *fdTable) {
	r, w := pipePair()
	wt := &fdTable{}
	wt.slots[FDStdout] = w
	rt := &fdTable{}
	rt.slots[FDStdin] = r
	return wt, rt
}

func TestPipeCarriesBytesBetweenTasks(t *testing.T) {
	k := testKernel()
	wFDs, rFDs := pipedPair()

	if _, ok := k.createTask(spawnSpec{name: "writer", fn: func(tc *Context) {
		tc.Print("hello")
	}, fds: wFDs}); !ok {
		t.Fatalf("spawn writer failed")
	}

	var got []byte
	if _, ok := k.createTask(spawnSpec{name: "reader", fn: func(tc *Context) {
		var buf [16]byte
		for {
			n, ok := tc.ReadFD(FDStdin, buf[:])
			got = append(got, buf[:n]...)
			if !ok {
				return
			}
		}
	}, fds: rFDs}); !ok {
		t.Fatalf("spawn reader failed")
	}

	tick(k, 6)

	if string(got) != "hello" {
		t.Fatalf("reader got %q, want %q", got, "hello")
	}
	checkConservation(t, k)
}

func TestPipeBackpressure(t *testing.T) {
	k := testKernel()
	wFDs, rFDs := pipedPair()

	payload := bytes.Repeat([]byte{0x42}, pipeBytes+50)
	var wrote int
	var wok bool
	k.createTask(spawnSpec{name: "writer", fn: func(tc *Context) {
		wrote, wok = tc.WriteFD(FDStdout, payload)
	}, fds: wFDs})

	var got []byte
	k.createTask(spawnSpec{name: "reader", fn: func(tc *Context) {
		var buf [64]byte
		for {
			n, ok := tc.ReadFD(FDStdin, buf[:])
			got = append(got, buf[:n]...)
			if !ok {
				return
			}
		}
	}, fds: rFDs})

	tick(k, 40)

	if !wok || wrote != len(payload) {
		t.Fatalf("write = (%d,%v), want (%d,true)", wrote, wok, len(payload))
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reader got %d bytes, want %d intact", len(got), len(payload))
	}
	checkConservation(t, k)
}

func TestReaderUnblocksWhenWriterDies(t *testing.T) {
	k := testKernel()
	wFDs, rFDs := pipedPair()

	writer, _ := k.createTask(spawnSpec{name: "writer", fn: func(tc *Context) {
		for {
			tc.Yield()
		}
	}, fds: wFDs})

	var done bool
	k.createTask(spawnSpec{name: "reader", fn: func(tc *Context) {
		var buf [8]byte
		for {
			if _, ok := tc.ReadFD(FDStdin, buf[:]); !ok {
				done = true
				return
			}
		}
	}, fds: rFDs})

	tick(k, 4)
	if done {
		t.Fatalf("reader finished with the pipe still open")
	}
	k.Kill(writer)
	tick(k, 4)

	if !done {
		t.Fatalf("reader still blocked after the writer died")
	}
	checkConservation(t, k)
}

// scriptSerial feeds a canned byte stream and reports EOF once drained.
type scriptSerial struct {
	data []byte
	out  bytes.Buffer
}

func (s *scriptSerial) Read(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func (s *scriptSerial) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func TestReadLineStripsTerminators(t *testing.T) {
	ser := &scriptSerial{data: []byte("hi there\r\nnext")}
	k := New(Config{Hostname: "testbox", Serial: ser})

	var line string
	var ok bool
	spawn(t, k, "console", func(tc *Context) {
		var buf [32]byte
		line, ok = tc.ReadLine(buf[:])
	})

	tick(k, 4)

	if !ok || line != "hi there" {
		t.Fatalf("ReadLine = (%q,%v), want (%q,true)", line, ok, "hi there")
	}
}

func TestReadLineReportsLostConsole(t *testing.T) {
	ser := &scriptSerial{data: []byte("partial")}
	k := New(Config{Hostname: "testbox", Serial: ser})

	var line string
	var ok bool
	spawn(t, k, "console", func(tc *Context) {
		var buf [32]byte
		line, ok = tc.ReadLine(buf[:])
	})

	tick(k, 4)

	if ok {
		t.Fatalf("ReadLine reported ok on a dead stream")
	}
	if line != "partial" {
		t.Fatalf("ReadLine = %q, want the partial input %q", line, "partial")
	}
}

func TestPrintWritesToSerial(t *testing.T) {
	ser := &scriptSerial{}
	k := New(Config{Hostname: "testbox", Serial: ser})

	spawn(t, k, "printer", func(tc *Context) {
		tc.Print("out")
	})
	tick(k, 2)

	if got := ser.out.String(); got != "out" {
		t.Fatalf("serial got %q, want %q", got, "out")
	}
}
