package nestbox

import (
	"strings"
	"testing"
)

func TestHomeOverride(t *testing.T) {
	t.Setenv("NESTBOX_HOME", "/custom/home")
	if got := Home(); got != "/custom/home" {
		t.Errorf("Home() = %q, want %q", got, "/custom/home")
	}
}

func TestSocketPathUnderRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	got := SocketPath("myproject")
	want := "/run/user/1000/nestbox/myproject.sock"
	if got != want {
		t.Errorf("SocketPath(myproject) = %q, want %q", got, want)
	}
}

func TestValidateSocketPath(t *testing.T) {
	if err := ValidateSocketPath("/run/user/1000/nestbox/p.sock"); err != nil {
		t.Errorf("ValidateSocketPath(short) error = %v, want nil", err)
	}

	long := "/tmp/" + strings.Repeat("a", 120) + ".sock"
	if err := ValidateSocketPath(long); err == nil {
		t.Error("ValidateSocketPath(long) error = nil, want path-too-long error")
	}

	// Exactly at the limit fails too.
	exact := strings.Repeat("a", unixSocketPathLimit)
	if err := ValidateSocketPath(exact); err == nil {
		t.Error("ValidateSocketPath(at limit) error = nil, want path-too-long error")
	}
}
