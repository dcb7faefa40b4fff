package version

import (
	"runtime"
	"runtime/debug"
	"strconv"
)

const develVersion = "devel"

// Info describes the running binary.
type Info struct {
	GoVersion string `json:"go_version"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Load reads the build info embedded by the Go toolchain. Binaries built
// without module support report a devel version.
func Load() Info {
	info := Info{
		GoVersion: runtime.Version(),
		Version:   develVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	modified := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			modified, _ = strconv.ParseBool(s.Value)
		}
	}
	info.Version = getVersion(bi.Main.Version, modified)
	return info
}

// UserAgent is sent with outgoing lookup requests.
func (i Info) UserAgent() string {
	return "peer-locations/" + i.Version
}

func getVersion(mainVersion string, modified bool) string {
	if modified || mainVersion == "" || mainVersion == "(devel)" {
		return develVersion
	}
	return mainVersion
}
