// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time, e.g. -ldflags "-X github.com/Sumatoshi-tech/regiontree/pkg/version.Version=v1.2.0".
var (
	Version   = "dev"
	GitHash   = "<unknown>"
	BuildDate = "<unknown>"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"    yaml:"version"`
	GitHash   string `json:"git_hash"   yaml:"git_hash"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform"   yaml:"platform"`
}

// Get returns the build metadata, falling back to the VCS stamp embedded by the Go toolchain.
func Get() Info {
	info := Info{
		Version:   Version,
		GitHash:   GitHash,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitHash == "<unknown>" {
				info.GitHash = setting.Value
			}
		case "vcs.time":
			if info.BuildDate == "<unknown>" {
				info.BuildDate = setting.Value
			}
		}
	}

	return info
}

func (i Info) String() string {
	return fmt.Sprintf("regiontree %s (%s, built %s, %s %s)", i.Version, i.GitHash, i.BuildDate, i.GoVersion, i.Platform)
}
