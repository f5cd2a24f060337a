// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/threadsync/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns "Version (GitCommit, BuildTime)".
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Print writes "<binary> <Info> <go version> <os>/<arch>" to w.
func Print(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s %s %s/%s\n", binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
