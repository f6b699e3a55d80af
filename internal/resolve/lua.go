package resolve

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/offkit/offkit/internal/platform"
)

// CatalogFileName is the optional catalog override file at the payload root.
const CatalogFileName = "catalog.lua"

// ParseError reports a catalog.lua problem with a user-facing message and
// the raw Lua detail.
type ParseError struct {
	Message string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// LoadCatalogFile evaluates a catalog.lua file in a sandboxed VM and returns
// the kinds it declares, validated. The target platform is exposed to the
// script as a read-only `platform` table, so one catalog file can serve all
// platforms.
func LoadCatalogFile(path string, spec platform.Spec) (Catalog, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return LoadCatalogString(string(code), spec)
}

// LoadCatalogString evaluates catalog code from a string. Used by tests and
// by LoadCatalogFile.
func LoadCatalogString(code string, spec platform.Spec) (Catalog, error) {
	L := newSandboxedVM()
	defer L.Close()

	if err := platform.InjectPlatformTable(L, spec); err != nil {
		return nil, fmt.Errorf("inject platform table: %w", err)
	}

	if err := L.DoString(code); err != nil {
		return nil, &ParseError{Message: "Lua syntax error", Detail: err.Error()}
	}

	catalog, err := extractCatalog(L)
	if err != nil {
		return nil, err
	}

	if err := catalog.Validate(); err != nil {
		return nil, &ParseError{Message: "catalog validation failed", Detail: err.Error()}
	}
	return catalog, nil
}

// extractCatalog pulls the kinds table out of the global `catalog` table.
//
// Expected shape:
//
//	catalog = {
//	  kinds = {
//	    runtime = {
//	      dir = "node",
//	      paths = { "node/node-portable*", "node/SHASUMS256.txt" },
//	      primary = "node/node-portable*",
//	    },
//	  },
//	}
func extractCatalog(L *lua.LState) (Catalog, error) {
	catalogVal := L.GetGlobal("catalog")
	if catalogVal.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'catalog' table",
			Detail:  fmt.Sprintf("expected table, got %s", catalogVal.Type()),
		}
	}

	kindsVal := catalogVal.(*lua.LTable).RawGetString("kinds")
	if kindsVal.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'catalog.kinds' table",
			Detail:  fmt.Sprintf("expected table, got %s", kindsVal.Type()),
		}
	}

	catalog := make(Catalog)
	var extractErr error
	kindsVal.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}
		if key.Type() != lua.LTString || value.Type() != lua.LTTable {
			extractErr = &ParseError{
				Message: "invalid kind entry",
				Detail:  fmt.Sprintf("kinds table keys must be strings mapping to tables, got %s=%s", key.Type(), value.Type()),
			}
			return
		}

		spec, err := extractKindSpec(value.(*lua.LTable))
		if err != nil {
			extractErr = &ParseError{
				Message: fmt.Sprintf("invalid kind %q", key.String()),
				Detail:  err.Error(),
			}
			return
		}
		catalog[key.String()] = spec
	})
	if extractErr != nil {
		return nil, extractErr
	}

	if len(catalog) == 0 {
		return nil, &ParseError{
			Message: "empty catalog",
			Detail:  "catalog.kinds declares no kinds",
		}
	}
	return catalog, nil
}

// extractKindSpec reads one kind table. Nil values inside the paths array
// (from platform.when conditionals) are filtered out.
func extractKindSpec(table *lua.LTable) (KindSpec, error) {
	spec := KindSpec{}

	dirVal := table.RawGetString("dir")
	if dirVal.Type() != lua.LTString {
		return spec, fmt.Errorf("'dir' must be a string, got %s", dirVal.Type())
	}
	spec.Dir = dirVal.String()

	pathsVal := table.RawGetString("paths")
	if pathsVal.Type() != lua.LTTable {
		return spec, fmt.Errorf("'paths' must be a table, got %s", pathsVal.Type())
	}
	var badPath error
	pathsVal.(*lua.LTable).ForEach(func(_, value lua.LValue) {
		switch value.Type() {
		case lua.LTString:
			spec.Patterns = append(spec.Patterns, value.String())
		case lua.LTNil:
			// platform.when() produced nil; drop it.
		default:
			badPath = fmt.Errorf("'paths' entries must be strings, got %s", value.Type())
		}
	})
	if badPath != nil {
		return spec, badPath
	}

	if primaryVal := table.RawGetString("primary"); primaryVal.Type() == lua.LTString {
		spec.Primary = primaryVal.String()
	}

	return spec, nil
}

// sandboxLuaVM strips everything that would let catalog code execute
// commands, touch the filesystem, or load external chunks. Catalogs are
// declarative; string/table/math stay available.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
}

func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
