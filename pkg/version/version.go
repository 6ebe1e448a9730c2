package version

// Set at build time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func Full() string {
	return Version + " (" + Commit + ") built on " + Date
}

func String(program string) string {
	return program + " " + Full()
}
