package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func newTestState(t *testing.T, spec Spec) *lua.LState {
	t.Helper()

	L := lua.NewState()
	t.Cleanup(L.Close)

	if err := InjectPlatformTable(L, spec); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}
	return L
}

func TestInjectPlatformTable_Fields(t *testing.T) {
	L := newTestState(t, Spec{OSLinux, ArchX64})

	tests := []struct {
		expr string
		want string
	}{
		{`return platform.id`, "linux_x64"},
		{`return platform.os`, "linux"},
		{`return platform.arch`, "x64"},
		{`return tostring(platform.is_linux)`, "true"},
		{`return tostring(platform.is_windows)`, "false"},
		{`return tostring(platform.is_macos)`, "false"},
		{`return tostring(platform.is_x64)`, "true"},
		{`return tostring(platform.is_arm64)`, "false"},
	}

	for _, tt := range tests {
		if err := L.DoString(tt.expr); err != nil {
			t.Fatalf("DoString(%q) failed: %v", tt.expr, err)
		}
		got := L.Get(-1).String()
		L.Pop(1)
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestInjectPlatformTable_When(t *testing.T) {
	L := newTestState(t, Spec{OSWindows, ArchX64})

	if err := L.DoString(`return platform.when(platform.is_windows, "node.exe")`); err != nil {
		t.Fatalf("when() failed: %v", err)
	}
	if got := L.Get(-1).String(); got != "node.exe" {
		t.Errorf("when(true, ...) = %q, want node.exe", got)
	}
	L.Pop(1)

	if err := L.DoString(`return platform.when(platform.is_linux, "bin/node")`); err != nil {
		t.Fatalf("when() failed: %v", err)
	}
	if L.Get(-1) != lua.LNil {
		t.Errorf("when(false, ...) = %v, want nil", L.Get(-1))
	}
}

func TestInjectPlatformTable_ReadOnly(t *testing.T) {
	L := newTestState(t, Spec{OSLinux, ArchARM64})

	err := L.DoString(`platform.os = "windows"`)
	if err == nil {
		t.Fatal("write to platform table succeeded, want error")
	}
	if !strings.Contains(err.Error(), "read-only") {
		t.Errorf("error = %v, want read-only violation", err)
	}

	// The original values must be unaffected.
	if err := L.DoString(`return platform.os`); err != nil {
		t.Fatalf("read after failed write errored: %v", err)
	}
	if got := L.Get(-1).String(); got != "linux" {
		t.Errorf("platform.os = %q after failed write, want linux", got)
	}
}
