// Package buildinfo carries version metadata stamped at link time via
// -ldflags. It shows up in the REST User-Agent and the agent's debug
// endpoint.
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the build metadata as a flat map for diagnostics output.
func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
