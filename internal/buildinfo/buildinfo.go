// Package buildinfo reports the version the binary was built as.
package buildinfo

import (
	"runtime/debug"
	"time"

	"golang.org/x/mod/semver"

	"github.com/kolkov/lazycell/lazy"
)

var (
	buildInfo = lazy.New[*debug.BuildInfo]()
	version   = lazy.New[string]()

	// Injected with ldflags at build!
	tag string
)

// Version returns the semantic version of the build.
// Use golang.org/x/mod/semver to compare versions.
func Version() string {
	return version.GetOrInit(func() string {
		return resolveVersion(tag)
	})
}

func resolveVersion(tag string) string {
	rev, ok := revision()
	if ok {
		rev = "+" + shortRevision(rev)
	}
	if tag == "" {
		return "v0.0.0-devel" + rev
	}
	v := tag
	if !semver.IsValid("v" + v) {
		return "v0.0.0-devel" + rev
	}
	if semver.Build("v"+v) == "" {
		v += rev
	}
	return "v" + v
}

// IsDev reports whether this is a development build.
func IsDev() bool {
	return semver.Prerelease(Version()) == "-devel"
}

// Time returns when the Git revision was published.
func Time() (time.Time, bool) {
	value, ok := find("vcs.time")
	if !ok {
		return time.Time{}, false
	}
	return parseTime(value)
}

func parseTime(value string) (time.Time, bool) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func revision() (string, bool) {
	return find("vcs.revision")
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func find(key string) (string, bool) {
	info := buildInfo.GetOrInit(func() *debug.BuildInfo {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return nil
		}
		return info
	})
	if info == nil {
		return "", false
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value, true
		}
	}
	return "", false
}
