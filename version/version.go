package version

import (
	"fmt"
	"runtime"
)

// Build information. Populated at build time via -ldflags:
//
//	-X github.com/jackzampolin/nanopdf/version.GitRelease=v0.1.0
//	-X github.com/jackzampolin/nanopdf/version.GitCommit=abc1234
//	-X github.com/jackzampolin/nanopdf/version.GitCommitDate=2026-01-15
var (
	// GitRelease is the semantic version of this build.
	GitRelease = "v0.1.0"

	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the date of that commit.
	GitCommitDate = "unknown"

	// GoInfo describes the Go toolchain and platform.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
