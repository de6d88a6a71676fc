// Package app assembles a bootable system: kernel, memory manager,
// logger, console slot, and the builtin program set. Host and baremetal
// mains differ only in the HAL they hand over.
package app

import (
	"errors"
	"strconv"
	"strings"

	"krill/client/kernctl"
	"krill/client/mem"
	"krill/hal"
	"krill/internal/buildinfo"
	"krill/kernel"
	"krill/services/logsvc"
	"krill/services/memsvc"
	"krill/services/shellsvc"
)

// Config carries the boot parameters both mains agree on.
type Config struct {
	Hostname   string
	ArenaBytes uint32
	Quantum    uint32 // preemption quantum in ticks; 0 = cooperative only

	HAL    hal.HAL
	Loader kernel.OverlayLoader
}

// Boot wires the service slots and the console slot into a fresh kernel.
// The returned kernel is ready to Tick.
func Boot(cfg Config) (*kernel.Kernel, error) {
	if cfg.HAL == nil {
		return nil, errors.New("app: nil HAL")
	}
	if cfg.ArenaBytes == 0 {
		cfg.ArenaBytes = 64 * 1024
	}
	if cfg.Hostname == "" {
		cfg.Hostname = "krill"
	}

	loader := cfg.Loader
	if loader == nil && cfg.HAL.Block() != nil {
		loader = newBlockLoader(cfg.HAL.Block())
	}

	k := kernel.New(kernel.Config{
		Hostname: cfg.Hostname,
		Quantum:  cfg.Quantum,
		Clock:    cfg.HAL.Clock(),
		Timer:    cfg.HAL.Timer(),
		Log:      cfg.HAL.Logger(),
		Serial:   cfg.HAL.Serial(),
		Loader:   loader,
	})

	if !k.AddService(kernel.TaskMem, "memd", memsvc.New(cfg.ArenaBytes).Run) {
		return nil, errors.New("app: memory manager slot taken")
	}
	if !k.AddService(kernel.TaskLog, "logd", logsvc.New(cfg.HAL.Logger()).Run) {
		return nil, errors.New("app: logger slot taken")
	}
	// System services run as root so their slots cannot be claimed or
	// killed by an ordinary user.
	k.Chown(kernel.TaskMem, kernel.UserRoot)
	k.Chown(kernel.TaskLog, kernel.UserRoot)
	if k.AddShellSlot("console", shellsvc.Login, shellsvc.Shell) == kernel.TaskNone {
		return nil, errors.New("app: no slot left for the console")
	}

	registerBuiltins(k)

	if log := cfg.HAL.Logger(); log != nil {
		log.WriteLineString("krill " + buildinfo.Short() + " on " + cfg.Hostname)
	}
	return k, nil
}

func registerBuiltins(k *kernel.Kernel) {
	k.RegisterProgram("echo", echoMain)
	k.RegisterProgram("ps", psMain)
	k.RegisterProgram("free", freeMain)
	k.RegisterProgram("uname", unameMain)
	k.RegisterProgram("kill", killMain)
	k.RegisterProgram("sleep", sleepMain)
	k.RegisterProgram("cat", catMain)
	k.RegisterProgram("upper", upperMain)
}

func echoMain(tc *kernel.Context) {
	args := tc.Args()
	if len(args) > 1 {
		tc.Print(strings.Join(args[1:], " "))
	}
	tc.Print("\r\n")
}

func psMain(tc *kernel.Context) {
	infos, err := kernctl.TaskInfos(tc)
	if err != nil {
		tc.Print("ps: " + err.Error() + "\r\n")
		return
	}
	tc.Print("ID  UID STATE   NAME\r\n")
	for _, ti := range infos {
		uid := strconv.Itoa(int(ti.UID))
		if ti.UID == kernel.UserNone {
			uid = "-"
		}
		tc.Print(pad(strconv.Itoa(int(ti.ID)), 4) + pad(uid, 4) +
			pad(ti.State.String(), 8) + ti.Name + "\r\n")
	}
}

func freeMain(tc *kernel.Context) {
	n, err := mem.FreeBytes(tc)
	if err != nil {
		tc.Print("free: " + err.Error() + "\r\n")
		return
	}
	tc.Print(strconv.FormatUint(uint64(n), 10) + " bytes free\r\n")
}

func unameMain(tc *kernel.Context) {
	host, _ := kernctl.Hostname(tc)
	tc.Print("krill " + buildinfo.Short() + " " + host + "\r\n")
}

func killMain(tc *kernel.Context) {
	args := tc.Args()
	if len(args) != 2 {
		tc.Print("usage: kill <id>\r\n")
		return
	}
	id, err := strconv.Atoi(args[1])
	if err != nil || id < 0 || id >= kernel.MaxTasks {
		tc.Print("kill: bad task id\r\n")
		return
	}
	if err := kernctl.Kill(tc, kernel.TaskID(id)); err != nil {
		tc.Print("kill: " + err.Error() + "\r\n")
	}
}

// tick timebase is 1 ms; sleep takes seconds like its namesake.
func sleepMain(tc *kernel.Context) {
	args := tc.Args()
	if len(args) != 2 {
		tc.Print("usage: sleep <seconds>\r\n")
		return
	}
	secs, err := strconv.Atoi(args[1])
	if err != nil || secs < 0 {
		tc.Print("sleep: bad duration\r\n")
		return
	}
	tc.Sleep(uint32(secs) * 1000)
}

func catMain(tc *kernel.Context) {
	var buf [64]byte
	for {
		n, ok := tc.ReadFD(kernel.FDStdin, buf[:])
		if n > 0 {
			tc.WriteFD(kernel.FDStdout, buf[:n])
		}
		if !ok {
			return
		}
	}
}

func upperMain(tc *kernel.Context) {
	var buf [64]byte
	for {
		n, ok := tc.ReadFD(kernel.FDStdin, buf[:])
		for i := 0; i < n; i++ {
			if buf[i] >= 'a' && buf[i] <= 'z' {
				buf[i] -= 'a' - 'A'
			}
		}
		if n > 0 {
			tc.WriteFD(kernel.FDStdout, buf[:n])
		}
		if !ok {
			return
		}
	}
}

func pad(s string, w int) string {
	for len(s) < w {
		s += " "
	}
	return s
}
