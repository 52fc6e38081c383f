// Package cmd holds build information shared by the service binaries.
package cmd

// These are set at build time with -ldflags "-X".
var (
	Version = "dev"
	Date    = "date"
)
