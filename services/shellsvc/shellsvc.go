// Package shellsvc holds the two programs that alternate on the console
// slot: login claims a user id, shell runs command lines under it. The
// scheduler relaunches the slot with login while it has no owner and with
// shell once it does.
package shellsvc

import (
	"strconv"
	"strings"

	"krill/client/kernctl"
	"krill/kernel"
)

// users maps login names to user ids. There is no password store; the
// console is assumed physically trusted.
var users = map[string]uint8{
	"root":  kernel.UserRoot,
	"guest": 1,
}

// Login prompts for a user name on the serial console and claims the
// matching uid. Returning hands the slot back to the scheduler, which
// relaunches it as the shell.
func Login(tc *kernel.Context) {
	host, _ := kernctl.Hostname(tc)
	var buf [32]byte
	for {
		tc.Print("\r\n" + host + " login: ")
		name, ok := tc.ReadLine(buf[:])
		if !ok {
			tc.Sleep(100) // console gone or erroring; back off
			continue
		}
		name = strings.TrimSpace(name)
		uid, found := users[name]
		if !found {
			tc.Print("unknown user\r\n")
			continue
		}
		if err := kernctl.SetUID(tc, tc.TaskID(), uid); err != nil {
			tc.Print("login failed\r\n")
			continue
		}
		tc.Print("welcome, " + name + "\r\n")
		return
	}
}

// Shell reads command lines and hands them to the kernel for launching.
// Foreground lines are waited on; a trailing & detaches. exit and logout
// drop the uid so the slot relaunches as login.
func Shell(tc *kernel.Context) {
	host, _ := kernctl.Hostname(tc)
	prompt := promptFor(tc.UID(), host)
	var buf [128]byte
	for {
		tc.Print(prompt)
		line, ok := tc.ReadLine(buf[:])
		if !ok {
			tc.Sleep(100)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "logout" {
			kernctl.SetUID(tc, tc.TaskID(), kernel.UserNone)
			return
		}
		if rest, found := strings.CutPrefix(line, "exec "); found {
			if err := kernctl.Exec(tc, rest); err != nil {
				tc.Print("exec: " + err.Error() + "\r\n")
				continue
			}
			return
		}
		background := false
		if strings.HasSuffix(line, "&") {
			background = true
			line = strings.TrimSpace(strings.TrimSuffix(line, "&"))
			if line == "" {
				continue
			}
		}
		id, err := kernctl.RunCommand(tc, line)
		if err != nil {
			tc.Print("sh: " + err.Error() + "\r\n")
			continue
		}
		if background {
			tc.Print("[" + strconv.Itoa(int(id)) + "]\r\n")
			continue
		}
		tc.WaitTask(id, 0)
	}
}

func promptFor(uid uint8, host string) string {
	mark := "$ "
	if uid == kernel.UserRoot {
		mark = "# "
	}
	return "u" + strconv.Itoa(int(uid)) + "@" + host + mark
}
