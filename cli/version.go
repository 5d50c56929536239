package cli

import "runtime/debug"

// version can be set by the linker.
var version string

// Version returns the version set by the linker, the main module version
// from the build information, or "unknown", in that order of preference.
func Version() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		// This will be "(devel)" for binaries not built by
		// "go install PACKAGE@VERSION".
		return info.Main.Version
	}
	return "unknown"
}
