package otkernel

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/doismellburning/otkernel/src.OTKERNEL_VERSION=X'"`
var OTKERNEL_VERSION string

type BuildVersion struct {
	Version   string
	Revision  string /* VCS revision, suffixed -DIRTY for a modified tree. */
	BuiltAt   string
	GoVersion string
}

func getBuildSettingOrDefault(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}

	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

func buildVersion(bi *debug.BuildInfo) BuildVersion {
	var v = BuildVersion{
		Version:   IfThenElse(OTKERNEL_VERSION == "", "!UNKNOWN!", OTKERNEL_VERSION),
		Revision:  getBuildSettingOrDefault(bi, "vcs.revision", "UNKNOWN"),
		BuiltAt:   getBuildSettingOrDefault(bi, "vcs.time", "UNKNOWN"),
		GoVersion: "UNKNOWN",
	}

	if bi != nil {
		v.GoVersion = bi.GoVersion
	}

	var dirty, dirtyErr = strconv.ParseBool(getBuildSettingOrDefault(bi, "vcs.modified", "INVALID"))
	if dirty {
		v.Revision += "-DIRTY"
	} else if dirtyErr != nil {
		v.Revision += "-UNKNOWNDIRTY"
	}

	return v
}

func (v BuildVersion) String() string {
	return fmt.Sprintf("otkernel - Version %s (revision %s, built at %s)", v.Version, v.Revision, v.BuiltAt)
}

func PrintVersion(w io.Writer, verbose bool) {
	var buildInfo, _ = debug.ReadBuildInfo()
	var v = buildVersion(buildInfo)

	fmt.Fprintln(w, v)

	if verbose {
		fmt.Fprintf(w, "\nGo: %s\nBuildInfo: %+v\n", v.GoVersion, buildInfo)
	}
}
