package kernctl

import (
	"testing"

	"krill/kernel"
)

func boot(t *testing.T, fn kernel.TaskFunc) *kernel.Kernel {
	t.Helper()
	k := kernel.New(kernel.Config{Hostname: "testbox"})
	if !k.AddService(kernel.TaskID(5), "driver", fn) {
		t.Fatalf("driver slot taken")
	}
	return k
}

func run(k *kernel.Kernel) {
	for i := 0; i < 40; i++ {
		k.Tick()
	}
}

func TestHostnameRoundTrip(t *testing.T) {
	var got string
	var err error
	k := boot(t, func(tc *kernel.Context) {
		got, err = Hostname(tc)
	})
	run(k)
	if err != nil || got != "testbox" {
		t.Fatalf("Hostname = (%q,%v), want (testbox,nil)", got, err)
	}
}

func TestRunCommandUnknownProgram(t *testing.T) {
	var err error
	k := boot(t, func(tc *kernel.Context) {
		_, err = RunCommand(tc, "no-such-program")
	})
	run(k)
	if err == nil {
		t.Fatalf("launch of an unregistered program succeeded")
	}
}

func TestRunCommandAndWait(t *testing.T) {
	var ran bool
	var launched kernel.TaskID
	var err error
	k := kernel.New(kernel.Config{Hostname: "testbox"})
	k.RegisterProgram("job", func(tc *kernel.Context) { ran = true })
	if !k.AddService(kernel.TaskID(5), "driver", func(tc *kernel.Context) {
		launched, err = RunCommand(tc, "job")
		if err == nil {
			tc.WaitTask(launched, 0)
		}
	}) {
		t.Fatalf("driver slot taken")
	}
	run(k)
	if err != nil || !ran {
		t.Fatalf("RunCommand = (%d,%v), ran=%v", launched, err, ran)
	}
}

func TestTaskCountSeesServices(t *testing.T) {
	var n int
	var err error
	k := boot(t, func(tc *kernel.Context) {
		n, err = TaskCount(tc)
	})
	run(k)
	// Scheduler plus the driver itself.
	if err != nil || n != 2 {
		t.Fatalf("TaskCount = (%d,%v), want (2,nil)", n, err)
	}
}

func TestGetUIDOfUnownedSlot(t *testing.T) {
	var uid uint8
	var err error
	k := boot(t, func(tc *kernel.Context) {
		uid, err = GetUID(tc, tc.TaskID())
	})
	run(k)
	if err != nil || uid != kernel.UserNone {
		t.Fatalf("GetUID = (%d,%v), want (%d,nil)", uid, err, kernel.UserNone)
	}
}
