// Package version exposes the release version embedded at build time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get reports Maestro's version as recorded in the VERSION file.
func Get() string {
	return strings.TrimSpace(raw)
}
