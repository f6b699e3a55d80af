package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable exposes the target platform to a Lua state as a
// read-only global named "platform". Catalog files use it to vary required
// paths per target, e.g.:
//
//	paths = { platform.is_windows and "node/node.exe" or "node/bin/node" }
//
// This must be called before the catalog code is loaded.
func InjectPlatformTable(L *lua.LState, spec Spec) error {
	t := L.NewTable()

	L.SetField(t, "id", lua.LString(spec.ID()))
	L.SetField(t, "os", lua.LString(string(spec.OS)))
	L.SetField(t, "arch", lua.LString(string(spec.Arch)))

	L.SetField(t, "is_windows", lua.LBool(spec.IsWindows()))
	L.SetField(t, "is_linux", lua.LBool(spec.IsLinux()))
	L.SetField(t, "is_macos", lua.LBool(spec.IsMac()))
	L.SetField(t, "is_x64", lua.LBool(spec.Arch == ArchX64))
	L.SetField(t, "is_arm64", lua.LBool(spec.Arch == ArchARM64))

	// when(condition, value) returns value if condition holds, nil otherwise.
	// Lets catalogs write conditional path lists without if/else chains.
	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", makeReadOnly(L, t))
	return nil
}

// makeReadOnly wraps a table in a proxy whose metatable forwards reads to the
// original and raises on any write, so catalog code cannot spoof the target
// platform mid-evaluation.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
