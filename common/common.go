// Package common holds process-wide constants and the shared logger setup
// used by every binary in this module.
package common

var (
	// PackageName is used as the metrics namespace and as the default
	// service tag in logs.
	PackageName = "node-launcher"

	// Version is overridden at build time with -ldflags.
	Version = "dev"
)
