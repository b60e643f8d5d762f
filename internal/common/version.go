package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
)

// Set via -ldflags during build
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// VersionFile is read from the binary's directory when present; release packaging
// writes it so a binary built without ldflags still reports its release
const VersionFile = ".version"

var resolveOnce sync.Once

func GetVersion() string {
	return Version
}

func GetBuild() string {
	return Build
}

func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// ResolveVersion fills in what ldflags left at defaults: the version from a .version file
// beside the executable and the commit from the module's VCS stamp. Safe to call repeatedly.
func ResolveVersion() {
	resolveOnce.Do(func() {
		if exePath, err := os.Executable(); err == nil {
			if v, ok := readVersionFile(filepath.Dir(exePath)); ok && Version == "dev" {
				Version = v
			}
		}
		if GitCommit == "unknown" {
			if rev := vcsRevision(); rev != "" {
				GitCommit = rev
			}
		}
	})
}

// readVersionFile returns the trimmed first line of dir/.version
func readVersionFile(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, VersionFile))
	if err != nil {
		return "", false
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSpace(line)
	return line, line != ""
}

// vcsRevision is the short commit of a `go build` from a checkout, with -dirty for local edits
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}
	return revision
}
