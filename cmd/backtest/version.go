package main

import (
	"fmt"
	"io"
	"runtime"
)

const (
	ProjectName    = "Tick Backtester"
	ProjectVersion = "1.0.0"
)

// Set during build via -ldflags
var (
	BuildDate   = "dev"
	BuildCommit = "dev"
)

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s v%s\n", ProjectName, ProjectVersion)
	fmt.Fprintf(w, "Build: %s (%s)\n", BuildCommit, BuildDate)
	fmt.Fprintf(w, "Go: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
