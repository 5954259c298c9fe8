/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package version holds build-time version information, injected via
// -ldflags at release build time. The zero values below are what a
// `go install` or local `go build` without those flags produces.
package version

var (
	// Version is the released tag, e.g. "v0.4.0". "dev" outside a release build.
	Version = "dev"
	// Commit is the short git commit hash the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp in RFC3339.
	Date = "unknown"
)

// BuildInfo is the `version --output json` payload.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// GetVersion returns the released tag, or "dev" outside a release build.
func GetVersion() string {
	return Version
}

// GetBuildInfo returns the full build provenance for `version --output json`.
func GetBuildInfo() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, Date: Date}
}
