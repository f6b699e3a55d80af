package install

import (
	"os"
	"path/filepath"
	"sort"
)

// Installed describes one completed install found under a prefix.
type Installed struct {
	Kind     string
	Platform string
	Version  string
	Path     string
	Receipt  *Receipt
}

// ListInstalled walks <prefix>/<kind>/<platform>/<version> and returns every
// directory that carries a completion receipt, sorted by kind, platform,
// version. Directories without a receipt are in-progress or damaged and are
// skipped. A missing prefix is an empty list, not an error.
func ListInstalled(prefix string) ([]Installed, error) {
	kinds, err := readDirNames(prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Installed
	for _, kind := range kinds {
		platforms, err := readDirNames(filepath.Join(prefix, kind))
		if err != nil {
			continue
		}
		for _, plat := range platforms {
			versions, err := readDirNames(filepath.Join(prefix, kind, plat))
			if err != nil {
				continue
			}
			for _, version := range versions {
				dir := filepath.Join(prefix, kind, plat, version)
				receipt, err := ReadReceipt(dir)
				if err != nil {
					continue
				}
				out = append(out, Installed{
					Kind:     kind,
					Platform: plat,
					Version:  version,
					Path:     dir,
					Receipt:  receipt,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
