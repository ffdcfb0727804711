// Package version exposes the application version derived from build
// metadata. Go 1.18+ embeds VCS info (git commit, dirty flag) into the
// binary via runtime/debug.BuildInfo, so no -ldflags are required.
package version

import "runtime/debug"

// AppName identifies the binary in logs and the health response.
const AppName = "deepresearch"

// GitCommit is the short git commit hash (8 chars) from build info, or
// "dev" when build info is unavailable (go test, non-git builds).
var GitCommit = initGitCommit()

func initGitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "deepresearch/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
