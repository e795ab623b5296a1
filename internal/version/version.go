// Package version carries build-time identity, stamped via ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/bindery/internal/version.Version=v1.2.0"
package version

var (
	// Version is the release tag, "unknown" for untagged builds.
	Version = "unknown"
	// BuildTime is when the binary was produced.
	BuildTime = "unknown"
	// GitCommit is the source revision the binary was built from.
	GitCommit = "unknown"
)
