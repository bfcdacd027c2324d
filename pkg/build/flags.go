// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata embedded at compile time via linker
// flags, for example:
//
//	go build -ldflags "-X bandstretch/pkg/build.buildName=bandstretch"
package build

import "fmt"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables populated by -ldflags during compilation.
// During development the "dev" fallbacks are used instead of failing.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "bandstretch",
		Description: "per-band granular time-stretch audio instrument",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies build information from the ldflags variables into the
// buildFlags struct. Missing flags keep their development defaults; only the
// application name is required.
func Initialize() error {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildFlags.Name == "" {
		return fmt.Errorf("build name is required")
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}

	return nil
}

// GetBuildFlags returns the current build information.
// Initialize should be called first during program startup.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
