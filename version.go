// Package orchestrator holds the module‑level version string shared by
// the CLI's update command and the updater.
package orchestrator

// VERSION is bumped by the release process; format is semver without a
// leading "v".
const VERSION = "0.1.0"
