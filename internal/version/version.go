// Package version reports the version of the module linked into the running binary.
package version

import "runtime/debug"

const modulePath = "github.com/tetratelabs/baseline32"

// Default is returned when the binary carries no module version, such as under "go run".
const Default = "dev"

// GetVersion returns the version of the baseline32 module in the build info of the binary.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	return versionOf(info)
}

func versionOf(info *debug.BuildInfo) string {
	if info.Main.Path == modulePath && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path != modulePath {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return Default
}
