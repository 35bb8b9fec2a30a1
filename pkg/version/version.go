package version

import (
	"os"
	"path/filepath"
	"runtime"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Set with -ldflags "-X github.com/mutablelogic/go-pgbus/pkg/version.GitTag=..."
var (
	GitSource   string
	GitTag      string
	GitBranch   string
	GitHash     string
	GoBuildTime string
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ExecName returns the name of the running executable
func ExecName() string {
	name, err := os.Executable()
	if err != nil {
		return "pgbus"
	}
	return filepath.Base(name)
}

// Version returns the tag, or the hash when there is no tag
func Version() string {
	switch {
	case GitTag != "":
		return GitTag
	case GitHash != "":
		return GitHash
	default:
		return "dev"
	}
}

func Compiler() string {
	return runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}
