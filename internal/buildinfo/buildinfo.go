// Package buildinfo carries version stamps set with -ldflags -X.
package buildinfo

import "runtime"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info is served at /debug/info.
func Info() map[string]string {
    return map[string]string{
        "service":   "supplyroute",
        "version":   Version,
        "commit":    Commit,
        "builtAt":   BuiltAt,
        "goVersion": runtime.Version(),
    }
}
