package ybox

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/samber/lo"
)

const defaultVersion = "unversioned"

// BuildInfo carries the version stamp reported by every ybox-* binary.
// Commit/Version/Date are normally injected by the linker at release build
// time; ResolveBuildInfo fills them in from the embedded VCS stamp when a
// binary was built with `go build` directly.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// ResolveBuildInfo returns version/commit/date, falling back to the Go
// module's embedded VCS settings when the linker did not inject them.
func ResolveBuildInfo(version, commit, date string) BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, Date: date}
	if info.Version == "" {
		info.Version = defaultVersion
	}
	if info.Version != defaultVersion {
		return info
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if revision, found := lo.Find(buildInfo.Settings, func(s debug.BuildSetting) bool {
		return s.Key == "vcs.revision"
	}); found {
		info.Commit = revision.Value
		info.Version = SafeTruncateCommit(revision.Value)
	}

	if t, found := lo.Find(buildInfo.Settings, func(s debug.BuildSetting) bool {
		return s.Key == "vcs.time"
	}); found {
		info.Date = t.Value
	}

	return info
}

// SafeTruncateCommit shortens a full VCS revision to the 7-character form
// developers are used to seeing.
func SafeTruncateCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String renders a multi-line banner (name and version, commit, date,
// os/arch), as used by every ybox-* --version flag.
func (b BuildInfo) String(binary string) string {
	return fmt.Sprintf("%s %s\ncommit: %s\ndate: %s\nos/arch: %s/%s",
		binary, b.Version, b.Commit, b.Date, runtime.GOOS, runtime.GOARCH)
}
