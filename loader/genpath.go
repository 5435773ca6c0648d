package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/errors"
	"golang.org/x/mod/modfile"
)

// GeneratedPackage derives the import path of the generated output package
// for a source directory: the enclosing module's path joined with the
// directory's module-relative path and the generated package name.
func GeneratedPackage(dir, genPkg string) (string, error) {
	modDir, data, err := findGoMod(dir)
	if err != nil {
		return "", err
	}
	f, err := modfile.ParseLax(filepath.Join(modDir, "go.mod"), data, nil)
	if err != nil {
		return "", errors.Wrap(err, "parse go.mod")
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", errors.Errorf("go.mod in %s declares no module path", modDir)
	}
	rel, err := filepath.Rel(modDir, dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	parts := []string{f.Module.Mod.Path}
	if rel != "." {
		parts = append(parts, filepath.ToSlash(rel))
	}
	parts = append(parts, genPkg)
	return strings.Join(parts, "/"), nil
}

// findGoMod walks upward from dir to the nearest go.mod.
func findGoMod(dir string) (string, []byte, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, errors.WithStack(err)
	}
	for cur := abs; ; {
		data, err := os.ReadFile(filepath.Join(cur, "go.mod"))
		if err == nil {
			return cur, data, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", nil, errors.Errorf("no go.mod above %s", abs)
		}
		cur = parent
	}
}
