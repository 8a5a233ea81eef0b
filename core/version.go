package core

// Version information for the terminal
const (
	// Version is the current terminal version
	Version = "development"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
