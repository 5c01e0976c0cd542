// Package utils holds small helpers that do not warrant their own
// package.
package utils

// Build metadata, overridden at release time via -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
