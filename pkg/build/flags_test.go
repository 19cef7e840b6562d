// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"runtime/debug"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   ldFlags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	if buildFlags != nil {
		origFlags = *buildFlags
	}

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	if buildFlags != nil {
		*buildFlags = origFlags
	}

	os.Exit(exitCode)
}

func resetFlags() {
	buildFlags = &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "soundfeatures", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "soundfeatures", "2025-04-13", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "soundfeatures", "2025-04-13", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "soundfeatures", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()

			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil {
					t.Fatalf("Initialize() expected error, got nil")
				}
				if err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			if buildFlags.Name != tt.buildName {
				t.Errorf("buildFlags.Name = %v, want %v", buildFlags.Name, tt.buildName)
			}
			if buildFlags.Commit != tt.buildCommit {
				t.Errorf("buildFlags.Commit = %v, want %v", buildFlags.Commit, tt.buildCommit)
			}
			if buildFlags.Version != tt.buildVer {
				t.Errorf("buildFlags.Version = %v, want %v", buildFlags.Version, tt.buildVer)
			}
		})
	}
}

func TestInitializeDevelopmentBuild(t *testing.T) {
	resetFlags()
	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""

	orig := readBuildInfo
	defer func() { readBuildInfo = orig }()
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123abcd"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			},
		}, true
	}

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}

	flags := GetBuildFlags()
	if flags.Name != DefaultName {
		t.Errorf("Name = %q, want %q", flags.Name, DefaultName)
	}
	if flags.Version != "dev" {
		t.Errorf("Version = %q, want dev", flags.Version)
	}
	if flags.Commit != "0123abcd" {
		t.Errorf("Commit = %q, want 0123abcd", flags.Commit)
	}
	if flags.Time != "2026-01-02T03:04:05Z" {
		t.Errorf("Time = %q, want 2026-01-02T03:04:05Z", flags.Time)
	}
}

func TestGetBuildFlagsString(t *testing.T) {
	buildFlags = &ldFlags{
		Name:    "soundfeatures",
		Time:    "2025-04-13",
		Commit:  "abcdef123",
		Version: "v1.0.0",
	}

	got := GetBuildFlags().String()
	for _, want := range []string{"soundfeatures", "v1.0.0", "abcdef123", "2025-04-13"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
