// SPDX-License-Identifier: MIT
//
// Package build carries the metadata linked into the ambience binary:
//
//	go build -ldflags "-X ambience/pkg/build.buildVersion=v0.3.0 \
//		-X ambience/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//		-X ambience/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// A plain `go build` is a development build and reports version "dev".
package build

import (
	"errors"
	"fmt"
	"strings"
)

// Name is the binary name used when no ldflag overrides it.
const Name = "ambience"

// Description is the one-line summary shown by the CLI.
const Description = "Audio-reactive particle scene served to browsers over websocket"

// Info describes one build.
type Info struct {
	Name        string
	Description string
	Version     string
	Commit      string
	Time        string
}

// Dev reports whether the binary was built without release ldflags.
func (i Info) Dev() bool { return i.Version == devVersion }

// String is the version line printed by --version and logged at startup.
func (i Info) String() string {
	if i.Dev() {
		return fmt.Sprintf("%s %s", i.Name, i.Version)
	}
	return fmt.Sprintf("%s %s (%s, built %s)", i.Name, i.Version, shortCommit(i.Commit), i.Time)
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

const (
	devVersion = "dev"
	unknown    = "unknown"
)

// Set by -ldflags.
var (
	buildName    string
	buildVersion string
	buildCommit  string
	buildTime    string
)

var current = defaults()

func defaults() Info {
	return Info{
		Name:        Name,
		Description: Description,
		Version:     devVersion,
		Commit:      unknown,
		Time:        unknown,
	}
}

// Initialize copies the ldflags into the build info. When version, commit
// or time is missing it reports all of them and keeps the development
// defaults. The name ldflag is optional.
func Initialize() error {
	var missing []string
	if buildVersion == "" {
		missing = append(missing, "buildVersion")
	}
	if buildCommit == "" {
		missing = append(missing, "buildCommit")
	}
	if buildTime == "" {
		missing = append(missing, "buildTime")
	}
	if len(missing) > 0 {
		current = defaults()
		return errors.New("missing ldflags: " + strings.Join(missing, ", "))
	}

	info := defaults()
	if buildName != "" {
		info.Name = buildName
	}
	info.Version = buildVersion
	info.Commit = buildCommit
	info.Time = buildTime
	current = info
	return nil
}

// Get returns the build info.
func Get() Info {
	return current
}
