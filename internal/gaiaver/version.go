// Package gaiaver carries build-stamp metadata for the GAIA binaries.
// BuildDate and GitCommit are overwritten at link time via
// -ldflags "-X github.com/azraeltruthsay/gaia/internal/gaiaver.BuildDate=...".
package gaiaver

const (
	// Version is the GAIA release version.
	Version = "0.1.0-dev"
	// ProtocolVersion is the CognitionPacket wire version this build emits.
	ProtocolVersion = "1"
)

var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// String returns a one-line version summary for --version flags.
func String() string {
	return "gaia " + Version + " (packet v" + ProtocolVersion + ", commit " + GitCommit + ", built " + BuildDate + ")"
}
