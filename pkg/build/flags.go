// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time embedded
// into the soundfeatures binary with linker flags:
//
//	go build -ldflags "-X .../pkg/build.buildName=soundfeatures \
//	  -X .../pkg/build.buildVersion=0.3.0 -X .../pkg/build.buildCommit=$(git rev-parse HEAD) \
//	  -X .../pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry no linker flags at all; for those the VCS stamp
// recorded by the Go toolchain is used instead.
package build

import (
	"fmt"
	"runtime/debug"
)

// DefaultName is reported when the binary was built without linker flags.
const DefaultName = "soundfeatures"

// DefaultDescription is the one-line summary shown by the CLI.
const DefaultDescription = "Extracts loudness, pitch, jitter and MFCC features from live or recorded audio"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the build information on a single line.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}

	// readBuildInfo is swapped in tests.
	readBuildInfo = debug.ReadBuildInfo
)

// Initialize copies the linker-provided values into the build information.
// A binary built with none of the flags is treated as a development build
// and falls back to the toolchain's VCS stamp. A binary with only some of
// the flags set is misbuilt and Initialize returns an error naming the
// first missing flag.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		fromBuildInfo()
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

func fromBuildInfo() {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		buildFlags.Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			buildFlags.Commit = s.Value
		case "vcs.time":
			buildFlags.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information. Call Initialize
// first so linker-provided values are in place.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
