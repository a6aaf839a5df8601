package version

// Version and Commit are set at build time via ldflags
var (
	Version = "0.1.0-dev"
	Commit  = ""
)

// GetVersion returns the current version
func GetVersion() string {
	return Version
}

// String returns the version with the commit appended when known
func String() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
