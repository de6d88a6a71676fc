package shellsvc

import (
	"testing"

	"krill/kernel"
)

func TestPromptMarksRoot(t *testing.T) {
	if got := promptFor(kernel.UserRoot, "box"); got != "u0@box# " {
		t.Fatalf("root prompt=%q", got)
	}
	if got := promptFor(1, "box"); got != "u1@box$ " {
		t.Fatalf("user prompt=%q", got)
	}
}

func TestKnownUsers(t *testing.T) {
	if users["root"] != kernel.UserRoot {
		t.Fatalf("root maps to uid %d", users["root"])
	}
	if _, ok := users["nobody"]; ok {
		t.Fatalf("unexpected user table entry")
	}
}
