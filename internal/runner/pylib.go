package runner

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// The all: prefix keeps the __init__.py files.
//
//go:embed all:pylib
var pylib embed.FS

var (
	libOnce  sync.Once
	libFiles map[string]string
)

// Libraries returns the physicslab and mathcanvas sources keyed by
// slash-separated path relative to the script directory
func Libraries() map[string]string {
	libOnce.Do(func() {
		libFiles = make(map[string]string)
		err := fs.WalkDir(pylib, "pylib", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".py") {
				return err
			}
			data, err := pylib.ReadFile(path)
			if err != nil {
				return err
			}
			libFiles[strings.TrimPrefix(path, "pylib/")] = string(data)
			return nil
		})
		if err != nil {
			// the tree is embedded at build time
			panic(err)
		}
	})
	return libFiles
}

// LibraryPackages lists the importable packages shipped with the runner
func LibraryPackages() []string {
	seen := make(map[string]bool)
	for path := range Libraries() {
		if pkg, _, ok := strings.Cut(path, "/"); ok {
			seen[pkg] = true
		}
	}
	out := make([]string, 0, len(seen))
	for pkg := range seen {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// WorkspaceFiles returns the libraries plus the learner's script
func WorkspaceFiles(code string) map[string]string {
	libs := Libraries()
	files := make(map[string]string, len(libs)+1)
	for name, content := range libs {
		files[name] = content
	}
	files[ScriptName] = code
	return files
}
