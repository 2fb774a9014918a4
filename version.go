package opsim

// Version information for the opsim service
const (
	// Version is the current opsim version
	Version = "development"

	// APIVersion is the current HTTP API version
	APIVersion = "v1"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
