// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/sydlexius/walkup/internal/version.Version=...".
package version

// Version is the application version string.
var Version = "dev"
